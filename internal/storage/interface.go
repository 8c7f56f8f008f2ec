package storage

import (
	"context"

	"stirimm/internal/models"
)

// ArticleStore is the read side of the news table used by the cluster cache
// and the change monitor
type ArticleStore interface {
	// FetchRecentArticles returns the limit most recent articles by publish date
	FetchRecentArticles(ctx context.Context, limit int) ([]models.Article, error)
	// MaxArticleID returns the highest article id; ok is false for an empty table
	MaxArticleID(ctx context.Context) (id int64, ok bool, err error)
	Ping(ctx context.Context) error
	Close() error
}

// ArticleWriter inserts articles. Ingestion lives outside this service; the
// writer backs local seeding and tests.
type ArticleWriter interface {
	InsertArticle(ctx context.Context, article *models.Article) error
}
