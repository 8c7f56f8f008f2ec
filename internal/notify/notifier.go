// Package notify delivers "something changed" signals from the article store
// to the change monitor. Payloads are ignored; a notification only means the
// cache may be stale.
package notify

import (
	"context"
	"errors"
	"net"
	"time"
)

// Notifier opens subscriptions on a named topic
type Notifier interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

// Subscription is a single live listener. It is not safe for concurrent use.
type Subscription interface {
	// Wait blocks until a notification arrives, timeout elapses or ctx is
	// done. It returns (false, nil) on timeout. Any other error means the
	// subscription is broken and must be closed and re-opened.
	Wait(ctx context.Context, timeout time.Duration) (bool, error)
	Close() error
}

// classifyWaitError maps an error from a bounded wait to the Wait contract:
// an expired wait deadline is not an error unless the caller's ctx ended.
func classifyWaitError(ctx context.Context, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false, nil
	}
	return false, err
}
