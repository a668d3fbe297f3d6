// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package api exposes the recommendation pipeline over HTTP: fetch and
// refresh actions, provider inspection, and the review queue, plus the
// health and metrics endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/middleware"
	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/orchestrator"
	"github.com/resonarr/resonarr/internal/provider"
)

// Fetcher is the orchestrator boundary the handlers call.
type Fetcher interface {
	Fetch(ctx context.Context, req orchestrator.FetchRequest) (*orchestrator.FetchResult, error)
	TestProvider(ctx context.Context) error
	ProviderHealth() map[string]provider.HealthRecord
}

// ReviewQueue is the review-queue boundary the handlers call.
type ReviewQueue interface {
	List(status models.ReviewStatus) ([]models.ReviewQueueItem, error)
	SetStatus(id string, status models.ReviewStatus) error
}

// ModelSource lists the models an external registry advertises.
type ModelSource interface {
	GetOrRefresh(ctx context.Context) (*provider.ModelRegistry, error)
}

// Options configures the router.
type Options struct {
	CORSOrigins     []string
	RateLimit       int
	RateLimitWindow time.Duration
}

// Server holds the handler dependencies.
type Server struct {
	fetcher  Fetcher
	reviews  ReviewQueue
	models   ModelSource
	selector string
	logger   zerolog.Logger
}

// NewServer creates the API server. modelSource may be nil when no
// external registry is configured.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewServer(fetcher Fetcher, reviews ReviewQueue, modelSource ModelSource, selector string, logger zerolog.Logger) *Server {
	return &Server{
		fetcher:  fetcher,
		reviews:  reviews,
		models:   modelSource,
		selector: selector,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Router assembles the chi router with the shared middleware stack.
func (s *Server) Router(opts Options) http.Handler {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		MaxAge:         86400,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Prometheus)
		r.Use(httprate.Limit(opts.RateLimit, opts.RateLimitWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Get("/recommendations", s.handleGetRecommendations)
		r.Post("/recommendations/refresh", s.handleRefreshRecommendations)

		r.Get("/providers/models", s.handleListModels)
		r.Post("/providers/test", s.handleTestProvider)

		r.Get("/review", s.handleListReview)
		r.Post("/review/{id}/{action}", s.handleReviewAction)
	})

	return r
}
