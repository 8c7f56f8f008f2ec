package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PostgresNotifier listens with LISTEN/NOTIFY. Each subscription holds its
// own connection outside the query pool.
type PostgresNotifier struct {
	connString string
	logger     zerolog.Logger
}

func NewPostgresNotifier(connString string, logger zerolog.Logger) *PostgresNotifier {
	return &PostgresNotifier{
		connString: connString,
		logger:     logger.With().Str("component", "pg-notifier").Logger(),
	}
}

func (n *PostgresNotifier) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	conn, err := pgx.Connect(ctx, n.connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open listener connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{topic}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("failed to listen on %s: %w", topic, err)
	}

	n.logger.Debug().Str("topic", topic).Msg("Listening")
	return &pgSubscription{conn: conn}, nil
}

// Publish sends an empty notification on topic
func (n *PostgresNotifier) Publish(ctx context.Context, topic string) error {
	conn, err := pgx.Connect(ctx, n.connString)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "SELECT pg_notify($1, '')", topic); err != nil {
		return fmt.Errorf("failed to notify %s: %w", topic, err)
	}
	return nil
}

func (n *PostgresNotifier) Close() error { return nil }

type pgSubscription struct {
	conn *pgx.Conn
}

func (s *pgSubscription) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.conn.WaitForNotification(waitCtx); err != nil {
		if s.conn.IsClosed() && ctx.Err() == nil {
			return false, fmt.Errorf("listener connection lost: %w", err)
		}
		return classifyWaitError(ctx, err)
	}
	return true, nil
}

func (s *pgSubscription) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.conn.Close(ctx)
}
