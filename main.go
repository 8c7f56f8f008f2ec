// Copyright (c) 2024 cblomart
// Licensed under the MIT License

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stirimm/internal/api"
	"stirimm/internal/cache"
	"stirimm/internal/clustering"
	"stirimm/internal/config"
	"stirimm/internal/logging"
	"stirimm/internal/monitor"
	"stirimm/internal/notify"
	"stirimm/internal/storage"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the article store
	store, err := storage.NewStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer store.Close()

	if cfg.Monitor.InstallNotifyTrigger {
		if pg, ok := store.(*storage.PostgresStore); ok {
			if err := pg.InstallNotifyTrigger(ctx, cfg.Monitor.Topic); err != nil {
				logger.Warn().Err(err).Msg("Failed to install news change trigger")
			}
		} else {
			logger.Warn().Msg("INSTALL_NOTIFY_TRIGGER needs a PostgreSQL store, ignoring")
		}
	}

	builder := clustering.NewBuilder(clustering.Options{
		SameSourceThreshold:  cfg.Clustering.SameSourceThreshold,
		CrossSourceThreshold: cfg.Clustering.CrossSourceThreshold,
	})
	clusterCache := cache.NewManager(store, builder, cfg.ArticleWindow, logger)

	// Warm the cache before serving. A failure is not fatal: the first read
	// or the next safety check computes the clusters.
	if err := clusterCache.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("Initial cluster computation failed")
	}

	notifier, err := notify.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize change notifier")
	}
	if notifier != nil {
		defer notifier.Close()
	}

	changeMonitor := monitor.New(clusterCache, store, notifier, monitor.Config{
		Topic:            cfg.Monitor.Topic,
		ListenWait:       cfg.Monitor.ListenWait,
		ReconnectBackoff: cfg.Monitor.ReconnectBackoff,
		SafetyInterval:   cfg.Monitor.SafetyCheckInterval,
		StatsInterval:    cfg.Monitor.CacheStatsInterval,
	}, logger)
	if err := changeMonitor.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start change monitor")
	}

	server := api.NewServer(clusterCache, changeMonitor, store, cfg, logger)

	logger.Info().
		Int("port", cfg.Port).
		Int("article_window", cfg.ArticleWindow).
		Str("notify_backend", cfg.NotifyBackend()).
		Dur("safety_check_interval", cfg.Monitor.SafetyCheckInterval).
		Msg("Starting stirimm")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.StartWithContext(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		changeMonitor.Stop()
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("Shutdown complete")
}
