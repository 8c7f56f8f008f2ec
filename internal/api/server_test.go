package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"stirimm/internal/cache"
	"stirimm/internal/clustering"
	"stirimm/internal/config"
	"stirimm/internal/models"
	"stirimm/internal/monitor"
	"stirimm/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMonitor struct {
	refreshed bool
	err       error
	calls     int
	status    monitor.Status
}

func (m *fakeMonitor) SafetyCheck(ctx context.Context) (bool, error) {
	m.calls++
	return m.refreshed, m.err
}

func (m *fakeMonitor) Status() monitor.Status { return m.status }

type failingStore struct{}

func (failingStore) FetchRecentArticles(ctx context.Context, limit int) ([]models.Article, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) MaxArticleID(ctx context.Context) (int64, bool, error) {
	return 0, false, errors.New("connection refused")
}

func (failingStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func testConfig() *config.Config {
	return &config.Config{
		Port:            0,
		EnableSwagger:   true,
		ShutdownTimeout: time.Second,
		Security: config.SecurityConfig{
			EnableSecurityHeaders: true,
			EnableRequestID:       true,
			MaxRequestSize:        1 << 20,
		},
	}
}

type testEnv struct {
	server  *Server
	store   *storage.SQLiteStore
	cache   *cache.Manager
	monitor *fakeMonitor
}

func seededEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewSQLiteStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	articles := []models.Article{
		{Source: "digi24", Title: "Incendiu puternic la o fabrica din Ploiesti", PublishDate: base.Add(10 * time.Hour)},
		{Source: "hotnews", Title: "Incendiu puternic la o fabrica din Ploiesti", PublishDate: base.Add(10*time.Hour + 30*time.Minute)},
		{Source: "g4media", Title: "Incendiu puternic la o fabrica din Ploiesti, pompierii intervin", PublishDate: base.Add(11 * time.Hour)},
		{Source: "digi24", Title: "Guvernul a aprobat bugetul pentru anul 2026", PublishDate: base.Add(12 * time.Hour)},
		{Source: "agerpres", Title: "Echipa nationala de handbal castiga turneul", PublishDate: base.Add(9 * time.Hour)},
	}
	for i := range articles {
		articles[i].IngestDate = articles[i].PublishDate
		articles[i].URL = "https://example.ro/" + articles[i].Source
		require.NoError(t, store.InsertArticle(context.Background(), &articles[i]))
	}

	manager := cache.NewManager(store, clustering.NewBuilder(clustering.DefaultOptions()), 300, zerolog.Nop())
	mon := &fakeMonitor{status: monitor.Status{Running: true}}

	return &testEnv{
		server:  NewServer(manager, mon, store, testConfig(), zerolog.Nop()),
		store:   store,
		cache:   manager,
		monitor: mon,
	}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeFeed(t *testing.T, w *httptest.ResponseRecorder) models.ClusterFeed {
	t.Helper()
	var feed models.ClusterFeed
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed), w.Body.String())
	return feed
}

func primaryIDs(feed models.ClusterFeed) []int64 {
	ids := make([]int64, 0, len(feed.Clusters))
	for _, c := range feed.Clusters {
		ids = append(ids, c.Primary.ID)
	}
	return ids
}

func TestServer_GetClusters(t *testing.T) {
	env := seededEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/clusters")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	feed := decodeFeed(t, w)
	assert.Equal(t, 3, feed.Count)
	assert.Equal(t, 3, feed.Total)
	assert.Equal(t, []int64{4, 1, 5}, primaryIDs(feed), "newest primary first")
	require.NotNil(t, feed.Watermark)
	assert.Equal(t, int64(5), *feed.Watermark)
	assert.False(t, feed.RefreshedAt.IsZero())

	fire := feed.Clusters[1]
	assert.Equal(t, "digi24", fire.Primary.Source)
	require.Len(t, fire.Duplicates, 2)
	assert.Equal(t, "hotnews", fire.Duplicates[0].Source)
	assert.Equal(t, "g4media", fire.Duplicates[1].Source)

	// singletons serialize an empty duplicate list, not null
	assert.Contains(t, w.Body.String(), `"duplicates":[]`)
}

func TestServer_GetClustersQueryOptions(t *testing.T) {
	env := seededEnv(t)

	tests := []struct {
		name      string
		query     string
		wantIDs   []int64
		wantTotal int
	}{
		{"page", "$top=1&$skip=1", []int64{1}, 3},
		{"filter", "$filter=" + url.QueryEscape("source_count ge 3"), []int64{1}, 1},
		{"filter any source", "$filter=" + url.QueryEscape("sources eq 'hotnews'"), []int64{1}, 1},
		{"filter primary source", "$filter=" + url.QueryEscape("source eq 'digi24'") + "&$top=1", []int64{4}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/clusters?"+tt.query)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			feed := decodeFeed(t, w)
			assert.Equal(t, tt.wantIDs, primaryIDs(feed))
			assert.Equal(t, tt.wantTotal, feed.Total)
		})
	}
}

func TestServer_GetClustersBadQuery(t *testing.T) {
	env := seededEnv(t)

	tests := []struct {
		name  string
		query string
	}{
		{"unknown field", "$filter=" + url.QueryEscape("author eq 'x'")},
		{"top zero", "$top=0"},
		{"negative skip", "$skip=-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/clusters?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestServer_GetPopularClusters(t *testing.T) {
	env := seededEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/clusters/popular")
	require.Equal(t, http.StatusOK, w.Code)

	feed := decodeFeed(t, w)
	assert.Equal(t, []int64{1}, primaryIDs(feed))
	assert.Equal(t, 1, feed.Total)
}

func TestServer_ColdCacheFailure(t *testing.T) {
	manager := cache.NewManager(failingStore{}, clustering.NewBuilder(clustering.DefaultOptions()), 300, zerolog.Nop())
	server := NewServer(manager, &fakeMonitor{}, failingStore{}, testConfig(), zerolog.Nop())

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/clusters", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_Liveness(t *testing.T) {
	env := seededEnv(t)

	w := env.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	down := NewServer(env.cache, env.monitor, failingStore{}, testConfig(), zerolog.Nop())
	w = httptest.NewRecorder()
	down.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_Health(t *testing.T) {
	env := seededEnv(t)

	var body map[string]any
	w := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "warming", body["status"])
	assert.Equal(t, false, body["cache_populated"])

	require.NoError(t, env.cache.Refresh(context.Background()))

	w = env.do(t, http.MethodGet, "/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["cache_populated"])

	env.monitor.status = monitor.Status{Running: true, ListenerEnabled: true}
	w = env.do(t, http.MethodGet, "/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestServer_RefreshCache(t *testing.T) {
	env := seededEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/clusters")
	require.Equal(t, 3, decodeFeed(t, w).Count)

	published := time.Date(2025, 5, 20, 15, 0, 0, 0, time.UTC)
	require.NoError(t, env.store.InsertArticle(context.Background(), &models.Article{
		Source:      "hotnews",
		Title:       "Trafic blocat pe autostrada A1 dupa un accident",
		PublishDate: published,
		IngestDate:  published,
	}))

	// the published snapshot is served until something refreshes it
	w = env.do(t, http.MethodGet, "/api/v1/clusters")
	assert.Equal(t, 3, decodeFeed(t, w).Count)

	w = env.do(t, http.MethodPost, "/api/v1/cache/refresh")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/clusters")
	feed := decodeFeed(t, w)
	assert.Equal(t, 4, feed.Count)
	assert.Equal(t, int64(6), feed.Clusters[0].Primary.ID)
	assert.Equal(t, int64(6), *feed.Watermark)
}

func TestServer_SafetyCheck(t *testing.T) {
	env := seededEnv(t)
	env.monitor.refreshed = true

	w := env.do(t, http.MethodPost, "/api/v1/cache/safety-check")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.monitor.calls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["refreshed"])

	env.monitor.err = errors.New("store unavailable")
	w = env.do(t, http.MethodPost, "/api/v1/cache/safety-check")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_CacheStatus(t *testing.T) {
	env := seededEnv(t)
	env.do(t, http.MethodGet, "/api/v1/clusters")

	w := env.do(t, http.MethodGet, "/api/v1/cache/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Cache   cache.Stats    `json:"cache"`
		Monitor monitor.Status `json:"monitor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Cache.Populated)
	assert.Equal(t, int64(1), body.Cache.Misses)
	assert.Equal(t, 3, body.Cache.ClusterCount)
	assert.Equal(t, 5, body.Cache.ArticleCount)
	assert.True(t, body.Monitor.Running)
}

func TestServer_Swagger(t *testing.T) {
	env := seededEnv(t)

	w := env.do(t, http.MethodGet, "/swagger/doc.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/clusters/popular")

	cfg := testConfig()
	cfg.EnableSwagger = false
	server := NewServer(env.cache, env.monitor, env.store, cfg, zerolog.Nop())
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RequestID(t *testing.T) {
	env := seededEnv(t)
	w := env.do(t, http.MethodGet, "/healthz")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_StartWithContext(t *testing.T) {
	env := seededEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.server.StartWithContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
