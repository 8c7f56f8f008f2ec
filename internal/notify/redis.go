package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisNotifier listens on a Redis pub/sub channel. The ingestion side
// publishes to the same channel after writing articles.
type RedisNotifier struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisNotifier(client *redis.Client, logger zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		logger: logger.With().Str("component", "redis-notifier").Logger(),
	}
}

func (n *RedisNotifier) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	pubsub := n.client.Subscribe(ctx, topic)

	// Wait for the subscription confirmation so that failures surface here
	// instead of on the first Wait.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	n.logger.Debug().Str("topic", topic).Msg("Subscribed")
	return &redisSubscription{pubsub: pubsub}, nil
}

// Publish sends an empty message on topic
func (n *RedisNotifier) Publish(ctx context.Context, topic string) error {
	if err := n.client.Publish(ctx, topic, "").Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
}

func (s *redisSubscription) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	msg, err := s.pubsub.ReceiveTimeout(ctx, timeout)
	if err != nil {
		return classifyWaitError(ctx, err)
	}

	switch msg.(type) {
	case *redis.Message:
		return true, nil
	default:
		// subscription confirmations and pongs
		return false, nil
	}
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
