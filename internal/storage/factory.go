package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stirimm/internal/config"

	"github.com/rs/zerolog"
)

var ErrUnsupportedDriver = errors.New("unsupported database url")

// NewStorage opens the article store selected by the configuration: PostgreSQL
// for postgres:// URLs, SQLite under DataDir when no URL is set
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ArticleStore, error) {
	switch {
	case cfg.DatabaseURL == "":
		return NewSQLiteStore(cfg.DataDir, logger)
	case IsPostgresURL(cfg.DatabaseURL):
		return NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	default:
		scheme, _, _ := strings.Cut(cfg.DatabaseURL, ":")
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedDriver, scheme)
	}
}

// IsPostgresURL reports whether url points at a PostgreSQL server
func IsPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}
