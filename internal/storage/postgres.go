package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"stirimm/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var ErrInvalidTopic = errors.New("invalid notification topic")

var topicPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PostgresStore reads the news table owned by the ingestion pipeline
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgresStore(ctx context.Context, connString string, logger zerolog.Logger) (*PostgresStore, error) {
	logger = logger.With().Str("component", "postgres-storage").Logger()

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Msg("Connected to PostgreSQL")

	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) FetchRecentArticles(ctx context.Context, limit int) ([]models.Article, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, publish_date, ingest_date,
		       COALESCE(title, ''), COALESCE(description, ''), COALESCE(url, ''), COALESCE(source, '')
		FROM news
		ORDER BY publish_date DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent articles: %w", err)
	}

	articles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Article, error) {
		var a models.Article
		err := row.Scan(&a.ID, &a.PublishDate, &a.IngestDate, &a.Title, &a.Description, &a.URL, &a.Source)
		a.PublishDate = a.PublishDate.UTC()
		a.IngestDate = a.IngestDate.UTC()
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	return articles, nil
}

func (s *PostgresStore) MaxArticleID(ctx context.Context) (int64, bool, error) {
	var maxID *int64
	if err := s.pool.QueryRow(ctx, "SELECT MAX(id) FROM news").Scan(&maxID); err != nil {
		return 0, false, fmt.Errorf("failed to read max article id: %w", err)
	}
	if maxID == nil {
		return 0, false, nil
	}
	return *maxID, true, nil
}

func (s *PostgresStore) InsertArticle(ctx context.Context, article *models.Article) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO news (publish_date, ingest_date, title, description, url, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		article.PublishDate.UTC(), article.IngestDate.UTC(), article.Title, article.Description, article.URL, article.Source,
	).Scan(&article.ID)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

// InstallNotifyTrigger installs a statement-level trigger that publishes on
// topic whenever the news table changes. Safe to run repeatedly.
func (s *PostgresStore) InstallNotifyTrigger(ctx context.Context, topic string) error {
	if !topicPattern.MatchString(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	statements := []string{
		`CREATE OR REPLACE FUNCTION stirimm_notify_news_changed() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify(TG_ARGV[0], '');
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS stirimm_news_changed ON news`,
		fmt.Sprintf(`CREATE TRIGGER stirimm_news_changed
		AFTER INSERT OR UPDATE OR DELETE ON news
		FOR EACH STATEMENT EXECUTE FUNCTION stirimm_notify_news_changed('%s')`, topic),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to install notify trigger: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit notify trigger: %w", err)
	}

	s.logger.Info().Str("topic", topic).Msg("Installed news change trigger")
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
