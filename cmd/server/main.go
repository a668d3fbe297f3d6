// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Resonarr server entrypoint: loads configuration, wires the
// recommendation pipeline, and serves the HTTP API until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/resonarr/resonarr/internal/api"
	"github.com/resonarr/resonarr/internal/cache"
	"github.com/resonarr/resonarr/internal/config"
	"github.com/resonarr/resonarr/internal/enrich"
	"github.com/resonarr/resonarr/internal/library"
	"github.com/resonarr/resonarr/internal/logging"
	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/orchestrator"
	"github.com/resonarr/resonarr/internal/prompt"
	"github.com/resonarr/resonarr/internal/provider"
	"github.com/resonarr/resonarr/internal/reviewqueue"
	"github.com/resonarr/resonarr/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger := logging.Logger()
	logger.Info().
		Str("selector", cfg.Provider.Selector).
		Str("data_dir", cfg.Storage.DataDir).
		Msg("starting resonarr")

	db, err := cache.OpenStore(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage open failed")
	}
	defer db.Close()

	resultCache := cache.New(db, cache.Options{}, logger)
	reviews := reviewqueue.NewQueue(db, logger)

	host := library.NewHostClient(cfg.Host.URL, cfg.Host.APIKey, logger)
	analyzer := library.NewAnalyzer(host, host, logger)

	var registryCache *provider.RegistryCache
	registryOpts := []provider.Option{}
	if cfg.Registry.Enabled && cfg.Registry.URL != "" {
		client := &provider.HTTPRegistryClient{URL: cfg.Registry.URL}
		registryCache = provider.NewRegistryCache(client, logger)
		registryOpts = append(registryOpts, provider.WithModelRegistry(registryCache))
	}
	registry := provider.NewRegistry(logger, registryOpts...)
	health := provider.NewHealthMonitor(logger)

	validator := validation.NewValidator(nil, logger)
	gate := validation.NewSafetyGate(cfg.Recommend.MinConfidence, cfg.Recommend.RequireMBID, reviews, logger)

	var enricher orchestrator.Enricher = enrich.Noop{}
	if cfg.Enrich.Enabled {
		mb := enrich.NewMusicBrainz(logger)
		if cfg.Enrich.Strict {
			enricher = enrich.Strict{Inner: mb}
		} else {
			enricher = mb
		}
	}

	orch := orchestrator.New(
		analyzer,
		registry,
		health,
		prompt.NewBuilder(),
		validator,
		enricher,
		gate,
		resultCache,
		reviews,
		cfg.Provider,
		orchestrator.Settings{
			Count:                  cfg.Recommend.Count,
			Mode:                   models.Mode(cfg.Recommend.Mode),
			ArtistOnly:             cfg.Recommend.ArtistOnly,
			MinConfidence:          cfg.Recommend.MinConfidence,
			RequireMBID:            cfg.Recommend.RequireMBID,
			BackfillAggressiveness: cfg.Recommend.BackfillAggressiveness,
			GuaranteeExact:         cfg.Recommend.GuaranteeExact,
			MaxAttempts:            cfg.Recommend.MaxAttempts,
			CacheTTL:               cfg.Recommend.CacheTTL,
		},
		logger,
	)

	var modelSource api.ModelSource
	if registryCache != nil {
		modelSource = registryCache
	}
	server := api.NewServer(orch, reviews, modelSource, cfg.Provider.Selector, logger)
	handler := server.Router(api.Options{
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown incomplete")
	}
	logger.Info().Msg("resonarr stopped")
}
