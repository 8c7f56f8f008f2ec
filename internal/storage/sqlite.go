package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stirimm/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore keeps the news table in a local SQLite file. It has no change
// notifications, so deployments on SQLite rely on the safety check alone.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLiteStore(dataDir string, logger zerolog.Logger) (*SQLiteStore, error) {
	logger = logger.With().Str("component", "sqlite-storage").Logger()

	// Ensure data directory exists with secure permissions (0750)
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "stirimm.db")
	logger.Info().Str("path", dbPath).Msg("Initializing database")

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_timeout=30000&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warn().Err(err).Str("pragma", pragma).Msg("Failed to set pragma")
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS news (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		publish_date DATETIME NOT NULL,
		ingest_date DATETIME NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_news_publish_date ON news(publish_date DESC);
	CREATE INDEX IF NOT EXISTS idx_news_source ON news(source);`

	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) FetchRecentArticles(ctx context.Context, limit int) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, publish_date, ingest_date, title, description, url, source
		FROM news
		ORDER BY publish_date DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent articles: %w", err)
	}
	defer rows.Close()

	articles := make([]models.Article, 0, limit)
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.PublishDate, &a.IngestDate, &a.Title, &a.Description, &a.URL, &a.Source); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.PublishDate = a.PublishDate.UTC()
		a.IngestDate = a.IngestDate.UTC()
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	return articles, nil
}

func (s *SQLiteStore) MaxArticleID(ctx context.Context) (int64, bool, error) {
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM news").Scan(&maxID); err != nil {
		return 0, false, fmt.Errorf("failed to read max article id: %w", err)
	}
	return maxID.Int64, maxID.Valid, nil
}

// InsertArticle stores a new article. A zero ID lets SQLite assign one and
// the assigned id is written back.
func (s *SQLiteStore) InsertArticle(ctx context.Context, article *models.Article) error {
	var (
		result sql.Result
		err    error
	)
	if article.ID == 0 {
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO news (publish_date, ingest_date, title, description, url, source)
			VALUES (?, ?, ?, ?, ?, ?)`,
			article.PublishDate.UTC(), article.IngestDate.UTC(), article.Title, article.Description, article.URL, article.Source)
	} else {
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO news (id, publish_date, ingest_date, title, description, url, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			article.ID, article.PublishDate.UTC(), article.IngestDate.UTC(), article.Title, article.Description, article.URL, article.Source)
	}
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}

	if article.ID == 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inserted id: %w", err)
		}
		article.ID = id
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
