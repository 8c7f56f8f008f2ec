package notify

import (
	"fmt"

	"stirimm/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// New builds the notifier selected by the configuration. It returns nil when
// notifications are disabled.
func New(cfg *config.Config, logger zerolog.Logger) (Notifier, error) {
	switch backend := cfg.NotifyBackend(); backend {
	case config.NotifyNone:
		return nil, nil
	case config.NotifyPostgres:
		return NewPostgresNotifier(cfg.DatabaseURL, logger), nil
	case config.NotifyRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisNotifier(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", backend)
	}
}
