// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package metrics defines the Prometheus collectors for the
// recommendation pipeline. Collectors are registered on the default
// registry at init via promauto and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "resonarr"

var (
	// ProviderCalls counts completion calls per provider and outcome.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "AI provider completion calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ProviderLatency observes completion call duration per provider.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "call_duration_seconds",
		Help:      "AI provider completion call latency.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"provider"})

	// CacheHits counts recommendation cache hits by tier.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Recommendation cache hits by tier (memory, disk).",
	}, []string{"tier"})

	// CacheMisses counts recommendation cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Recommendation cache misses.",
	})

	// TopUpIterations observes provider round-trips needed per fetch.
	TopUpIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "topup_iterations",
		Help:      "Provider round-trips needed to converge one fetch.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})

	// FetchOutcomes counts fetches by terminal state.
	FetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "fetch_outcomes_total",
		Help:      "Recommendation fetches by terminal state (converged, exhausted, failed, cached).",
	}, []string{"outcome"})

	// ItemsFiltered counts items removed by validation, by reason.
	ItemsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "validation",
		Name:      "items_filtered_total",
		Help:      "Recommendations filtered during validation, by reason.",
	}, []string{"reason"})

	// ReviewQueueDepth tracks the number of items pending review.
	ReviewQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "review",
		Name:      "queue_depth",
		Help:      "Items pending human review.",
	})

	// HTTPRequests counts API requests by route, method and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route, method and status class.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes API request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)
