package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"stirimm/internal/models"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const snapshotKey = "clusters"

// ArticleSource is the slice of the article store the cache needs.
type ArticleSource interface {
	FetchRecentArticles(ctx context.Context, limit int) ([]models.Article, error)
	MaxArticleID(ctx context.Context) (int64, bool, error)
}

// Clusterer builds clusters from an article window.
type Clusterer interface {
	Build(articles []models.Article) []models.Cluster
}

// Snapshot is one published clustering. It is never modified after publication.
type Snapshot struct {
	Clusters     []models.Cluster
	Watermark    int64
	HasWatermark bool
	ArticleCount int
	RefreshedAt  time.Time
	Duration     time.Duration
}

// Stats are the cache counters since startup.
type Stats struct {
	Hits         int64         `json:"hits"`
	Misses       int64         `json:"misses"`
	Refreshes    int64         `json:"refreshes"`
	Failures     int64         `json:"failures"`
	LastRefresh  time.Time     `json:"last_refresh"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	Populated    bool          `json:"populated"`
	ClusterCount int           `json:"cluster_count"`
	ArticleCount int           `json:"article_count"`
	HasWatermark bool          `json:"has_watermark"`
	Watermark    int64         `json:"watermark"`
}

// Manager holds the published cluster list for the recent article window.
// Reads never wait on a refresh once the first snapshot exists; refreshes
// run one at a time.
type Manager struct {
	store     *cache.Cache
	source    ArticleSource
	clusterer Clusterer
	window    int
	logger    zerolog.Logger

	refreshMu sync.Mutex

	hits      atomic.Int64
	misses    atomic.Int64
	refreshes atomic.Int64
	failures  atomic.Int64
	lastErr   atomic.Value
}

func NewManager(source ArticleSource, clusterer Clusterer, window int, logger zerolog.Logger) *Manager {
	return &Manager{
		store:     cache.New(cache.NoExpiration, 0),
		source:    source,
		clusterer: clusterer,
		window:    window,
		logger:    logger.With().Str("component", "cluster-cache").Logger(),
	}
}

// Snapshot returns the published snapshot, if any.
func (m *Manager) Snapshot() (*Snapshot, bool) {
	cached, found := m.store.Get(snapshotKey)
	if !found {
		return nil, false
	}
	snap, ok := cached.(*Snapshot)
	return snap, ok
}

// Read returns the published clusters. The first call on an empty cache
// computes them inline; concurrent first callers wait for that computation
// instead of starting their own.
func (m *Manager) Read(ctx context.Context) ([]models.Cluster, error) {
	if snap, ok := m.Snapshot(); ok {
		m.hits.Add(1)
		return snap.Clusters, nil
	}
	m.misses.Add(1)

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	if snap, ok := m.Snapshot(); ok {
		return snap.Clusters, nil
	}

	m.logger.Info().Msg("Cluster cache empty, computing on read")
	if err := m.refreshLocked(ctx); err != nil {
		return nil, err
	}

	snap, _ := m.Snapshot()
	return snap.Clusters, nil
}

// Refresh fetches the article window, clusters it and publishes the result.
// On failure the previous snapshot stays published.
func (m *Manager) Refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	start := time.Now()

	// Read the watermark before the articles: a row inserted in between
	// then shows up as a watermark mismatch on the next safety check.
	watermark, hasWatermark, err := m.source.MaxArticleID(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("failed to read article watermark: %w", err))
	}

	articles, err := m.source.FetchRecentArticles(ctx, m.window)
	if err != nil {
		return m.fail(fmt.Errorf("failed to fetch recent articles: %w", err))
	}

	clusters := m.clusterer.Build(articles)

	snap := &Snapshot{
		Clusters:     clusters,
		Watermark:    watermark,
		HasWatermark: hasWatermark,
		ArticleCount: len(articles),
		RefreshedAt:  time.Now().UTC(),
		Duration:     time.Since(start),
	}
	m.store.Set(snapshotKey, snap, cache.NoExpiration)
	m.refreshes.Add(1)

	m.logger.Info().
		Int("articles", len(articles)).
		Int("clusters", len(clusters)).
		Int64("watermark", watermark).
		Dur("duration", snap.Duration).
		Msg("Cluster cache refreshed")

	return nil
}

func (m *Manager) fail(err error) error {
	m.failures.Add(1)
	m.lastErr.Store(err.Error())
	return err
}

// Watermark returns the highest article id seen by the last successful refresh.
func (m *Manager) Watermark() (int64, bool) {
	snap, ok := m.Snapshot()
	if !ok || !snap.HasWatermark {
		return 0, false
	}
	return snap.Watermark, true
}

// IsPopulated reports whether a snapshot has been published.
func (m *Manager) IsPopulated() bool {
	_, ok := m.Snapshot()
	return ok
}

func (m *Manager) Stats() Stats {
	stats := Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Refreshes: m.refreshes.Load(),
		Failures:  m.failures.Load(),
	}
	if lastErr, ok := m.lastErr.Load().(string); ok {
		stats.LastError = lastErr
	}
	if snap, ok := m.Snapshot(); ok {
		stats.Populated = true
		stats.LastRefresh = snap.RefreshedAt
		stats.LastDuration = snap.Duration
		stats.ClusterCount = len(snap.Clusters)
		stats.ArticleCount = snap.ArticleCount
		stats.HasWatermark = snap.HasWatermark
		stats.Watermark = snap.Watermark
	}
	return stats
}

// LogStats writes the counters to the log.
func (m *Manager) LogStats() {
	stats := m.Stats()
	m.logger.Info().
		Int64("hits", stats.Hits).
		Int64("misses", stats.Misses).
		Int64("refreshes", stats.Refreshes).
		Int64("failures", stats.Failures).
		Int("clusters", stats.ClusterCount).
		Time("last_refresh", stats.LastRefresh).
		Msg("Cluster cache stats")
}
