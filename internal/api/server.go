package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"stirimm/internal/cache"
	"stirimm/internal/config"
	"stirimm/internal/models"
	"stirimm/internal/monitor"
	"stirimm/internal/query"
	"stirimm/internal/security"
	"stirimm/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ClusterCache is the read and refresh surface of the cluster cache
type ClusterCache interface {
	Read(ctx context.Context) ([]models.Cluster, error)
	Refresh(ctx context.Context) error
	Snapshot() (*cache.Snapshot, bool)
	Stats() cache.Stats
}

// ChangeMonitor exposes the monitor's manual trigger and state
type ChangeMonitor interface {
	SafetyCheck(ctx context.Context) (bool, error)
	Status() monitor.Status
}

// Pinger checks that the article store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router          *gin.Engine
	cache           ClusterCache
	monitor         ChangeMonitor
	store           Pinger
	port            int
	shutdownTimeout time.Duration
	logger          zerolog.Logger
	swaggerServer   *web.SwaggerServer
}

func NewServer(clusters ClusterCache, changes ChangeMonitor, store Pinger, cfg *config.Config, logger zerolog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	security.SetupSecurityMiddleware(router, cfg.Security, logger)

	server := &Server{
		router:          router,
		cache:           clusters,
		monitor:         changes,
		store:           store,
		port:            cfg.Port,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger.With().Str("component", "api").Logger(),
		swaggerServer:   web.NewSwaggerServer(cfg.EnableSwagger),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.liveness)
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/v1")
	{
		api.GET("/clusters", s.getClusters)
		api.GET("/clusters/popular", s.getPopularClusters)

		api.GET("/cache/status", s.getCacheStatus)
		api.POST("/cache/refresh", s.refreshCache)
		api.POST("/cache/safety-check", s.runSafetyCheck)
	}

	s.swaggerServer.RegisterRoutes(s.router)
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// StartWithContext serves HTTP until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) StartWithContext(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Int("port", s.port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// liveness answers "ok" when the article store responds
func (s *Server) liveness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Health check ping failed")
		c.String(http.StatusServiceUnavailable, "unavailable")
		return
	}
	c.String(http.StatusOK, "ok")
}

func (s *Server) healthCheck(c *gin.Context) {
	status := s.monitor.Status()
	stats := s.cache.Stats()

	state := "healthy"
	if !stats.Populated {
		state = "warming"
	} else if status.ListenerEnabled && !status.Listening {
		state = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           state,
		"service":          "stirimm",
		"listener_enabled": status.ListenerEnabled,
		"listener_active":  status.Listening,
		"cache_populated":  stats.Populated,
	})
}

// getClusters returns the recent clusters, newest first
func (s *Server) getClusters(c *gin.Context) {
	s.serveClusters(c, false)
}

// getPopularClusters returns clusters reported by several sources, most
// sources first
func (s *Server) getPopularClusters(c *gin.Context) {
	s.serveClusters(c, true)
}

func (s *Server) serveClusters(c *gin.Context, popular bool) {
	clusters, err := s.cache.Read(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read clusters")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "clusters are not available yet",
		})
		return
	}

	if popular {
		clusters = query.Popular(clusters)
	}

	page, total, err := query.Apply(clusters, parseClusterQuery(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	feed := models.ClusterFeed{
		Clusters: page,
		Count:    len(page),
		Total:    total,
	}
	if snap, ok := s.cache.Snapshot(); ok {
		feed.RefreshedAt = snap.RefreshedAt
		if snap.HasWatermark {
			watermark := snap.Watermark
			feed.Watermark = &watermark
		}
	}

	c.JSON(http.StatusOK, feed)
}

func parseClusterQuery(c *gin.Context) models.ClusterQuery {
	q := models.ClusterQuery{Filter: c.Query("$filter")}

	if topStr := c.Query("$top"); topStr != "" {
		if top, err := strconv.Atoi(topStr); err == nil {
			q.Top = top
		}
	}
	if skipStr := c.Query("$skip"); skipStr != "" {
		if skip, err := strconv.Atoi(skipStr); err == nil {
			q.Skip = skip
		}
	}
	return q
}

func (s *Server) getCacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cache":   s.cache.Stats(),
		"monitor": s.monitor.Status(),
	})
}

func (s *Server) refreshCache(c *gin.Context) {
	if err := s.cache.Refresh(c.Request.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Manual cache refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cluster cache refreshed",
		"cache":   s.cache.Stats(),
	})
}

func (s *Server) runSafetyCheck(c *gin.Context) {
	refreshed, err := s.monitor.SafetyCheck(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     err.Error(),
			"refreshed": refreshed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refreshed": refreshed,
		"cache":     s.cache.Stats(),
	})
}
