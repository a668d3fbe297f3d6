// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package orchestrator composes the recommendation pipeline: cache check,
// library analysis, prompt rendering, provider invocation guarded by
// health tracking, the multi-stage filter chain, and the iterative top-up
// loop that converges on the requested count.
//
// Concurrent fetches with the same operation key are coalesced through
// singleflight: the second caller awaits the in-flight result instead of
// issuing a duplicate provider call.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/resonarr/resonarr/internal/cache"
	"github.com/resonarr/resonarr/internal/metrics"
	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/prompt"
	"github.com/resonarr/resonarr/internal/provider"
	"github.com/resonarr/resonarr/internal/validation"
)

// Fetch terminal states, recorded in results and metrics.
const (
	OutcomeCached      = "cached"
	OutcomeConverged   = "converged"
	OutcomeExhausted   = "exhausted"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// LibrarySource is the collection boundary the orchestrator reads.
// Implemented by library.Analyzer.
type LibrarySource interface {
	// Analyze returns the current profile; it never fails, degrading to
	// a fallback profile instead.
	Analyze(ctx context.Context) *models.LibraryProfile

	// BuildIndex returns the duplicate-filter index over owned content.
	BuildIndex(ctx context.Context) (*validation.LibraryIndex, error)
}

// ProviderFactory constructs the configured backend. Implemented by
// provider.Registry.
type ProviderFactory interface {
	CreateProvider(ctx context.Context, cfg provider.Config) provider.CreationResult
}

// ReviewStore is the review-queue boundary: accepted items are merged
// into the next fetch, never-keys are a permanent exclusion set.
type ReviewStore interface {
	DrainAccepted() ([]models.Recommendation, error)
	NeverKeys() (map[string]struct{}, error)
}

// ResultCache is the content-addressed result cache boundary.
type ResultCache interface {
	TryGet(fingerprint string) ([]models.Recommendation, bool)
	Set(fingerprint string, items []models.Recommendation, ttl time.Duration) error
	Invalidate(fingerprint string) error
}

// Enricher resolves external identifiers between validation and gating.
type Enricher interface {
	EnrichWithExternalIDs(ctx context.Context, items []models.Recommendation) ([]models.Recommendation, error)
}

// Settings are the effective per-fetch pipeline settings.
type Settings struct {
	Count                  int
	Mode                   models.Mode
	ArtistOnly             bool
	MinConfidence          float64
	RequireMBID            bool
	BackfillAggressiveness int
	GuaranteeExact         bool
	MaxAttempts            int
	CacheTTL               time.Duration
}

// FetchRequest is one recommendation fetch. Zero-value fields fall back
// to the orchestrator's configured settings.
type FetchRequest struct {
	Count        int
	Mode         models.Mode
	ArtistOnly   bool
	ForceRefresh bool
}

// FetchResult is the outcome of one fetch.
type FetchResult struct {
	Recommendations []models.Recommendation `json:"recommendations"`

	// Outcome is the terminal pipeline state.
	Outcome string `json:"outcome"`

	// FromCache is set when the result was served without a provider call.
	FromCache bool `json:"from_cache"`

	// Attempts counts provider round-trips made for this result.
	Attempts int `json:"attempts"`

	// FailOpen is set when promotion relaxed the identifier gate.
	FailOpen bool `json:"fail_open,omitempty"`

	// Fingerprint is the cache identity of this result.
	Fingerprint string `json:"fingerprint"`
}

// Orchestrator drives the recommendation pipeline end to end. Safe for
// concurrent use.
type Orchestrator struct {
	library   LibrarySource
	providers ProviderFactory
	health    *provider.HealthMonitor
	prompts   *prompt.Builder
	validator *validation.Validator
	enricher  Enricher
	gate      *validation.SafetyGate
	cache     ResultCache
	reviews   ReviewStore

	providerCfg provider.Config
	settings    Settings

	group  singleflight.Group
	logger zerolog.Logger
}

// New assembles an orchestrator from its pipeline stages.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(
	lib LibrarySource,
	providers ProviderFactory,
	health *provider.HealthMonitor,
	prompts *prompt.Builder,
	validator *validation.Validator,
	enricher Enricher,
	gate *validation.SafetyGate,
	resultCache ResultCache,
	reviews ReviewStore,
	providerCfg provider.Config,
	settings Settings,
	logger zerolog.Logger,
) *Orchestrator {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = defaultMaxAttempts
	}
	return &Orchestrator{
		library:     lib,
		providers:   providers,
		health:      health,
		prompts:     prompts,
		validator:   validator,
		enricher:    enricher,
		gate:        gate,
		cache:       resultCache,
		reviews:     reviews,
		providerCfg: providerCfg,
		settings:    settings,
		logger:      logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Fetch runs the full pipeline for one request. Failures degrade to an
// empty result with a recorded cause; the only returned error is a
// cancelled context.
func (o *Orchestrator) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	settings := o.effectiveSettings(req)

	profile := o.library.Analyze(ctx)

	creation := o.providers.CreateProvider(ctx, o.providerCfg)
	if creation.Unavailable {
		o.logger.Warn().
			Str("selector", o.providerCfg.Selector).
			Str("reason", creation.Reason).
			Msg("provider unavailable, returning empty result")
		metrics.FetchOutcomes.WithLabelValues(OutcomeUnavailable).Inc()
		return &FetchResult{Outcome: OutcomeUnavailable}, nil
	}
	backend := creation.Provider

	fingerprint := cache.FingerprintForProfile(profile, cache.FingerprintInput{
		Provider:         o.providerCfg.Selector,
		Model:            backend.Name(),
		Mode:             settings.Mode,
		Count:            settings.Count,
		ArtistOnly:       settings.ArtistOnly,
		SanitizerVersion: validation.SanitizerVersion,
	})

	if req.ForceRefresh {
		if err := o.cache.Invalidate(fingerprint); err != nil {
			o.logger.Warn().Err(err).Msg("cache invalidation failed")
		}
	} else if items, ok := o.cache.TryGet(fingerprint); ok {
		metrics.FetchOutcomes.WithLabelValues(OutcomeCached).Inc()
		return &FetchResult{
			Recommendations: items,
			Outcome:         OutcomeCached,
			FromCache:       true,
			Fingerprint:     fingerprint,
		}, nil
	}

	// The fingerprint is the operation key: selector plus a hash of the
	// effective settings and profile summary. Identical concurrent
	// fetches share one pipeline run.
	value, err, shared := o.group.Do(fingerprint, func() (any, error) {
		return o.run(ctx, backend, profile, settings, fingerprint)
	})
	if err != nil {
		return nil, err
	}
	result := value.(*FetchResult)
	if shared {
		o.logger.Debug().Str("fingerprint", fingerprint).Msg("coalesced with in-flight fetch")
	}
	return result, nil
}

// InvalidateProfile discards the cached library profile, called when the
// host reports a library mutation.
func (o *Orchestrator) InvalidateProfile() {
	if inv, ok := o.library.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

// TestProvider verifies the configured backend is reachable.
func (o *Orchestrator) TestProvider(ctx context.Context) error {
	creation := o.providers.CreateProvider(ctx, o.providerCfg)
	if creation.Unavailable {
		return &provider.UnavailableError{Selector: o.providerCfg.Selector, Reason: creation.Reason}
	}
	return creation.Provider.TestConnection(ctx)
}

// ProviderHealth exposes the health snapshot for the API surface.
func (o *Orchestrator) ProviderHealth() map[string]provider.HealthRecord {
	return o.health.Snapshot()
}

func (o *Orchestrator) effectiveSettings(req FetchRequest) Settings {
	settings := o.settings
	if req.Count > 0 {
		settings.Count = req.Count
	}
	if req.Mode.Valid() {
		settings.Mode = req.Mode
	}
	if req.ArtistOnly {
		settings.ArtistOnly = true
	}
	return settings
}

// run executes the generation pipeline once per operation key. The
// effective timeout is computed here, once, and held for the whole run.
func (o *Orchestrator) run(ctx context.Context, backend provider.Provider, profile *models.LibraryProfile, settings Settings, fingerprint string) (*FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.providerCfg.EffectiveTimeout())
	defer cancel()

	switch o.health.Check(backend.Name()) {
	case provider.Unhealthy:
		o.logger.Warn().
			Str("provider", backend.Name()).
			Msg("provider unhealthy, skipping without attempt")
		metrics.FetchOutcomes.WithLabelValues(OutcomeUnavailable).Inc()
		return &FetchResult{Outcome: OutcomeUnavailable, Fingerprint: fingerprint}, nil
	case provider.Degraded:
		o.logger.Warn().
			Str("provider", backend.Name()).
			Msg("provider degraded, attempting anyway")
	}

	index, err := o.library.BuildIndex(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("library index build failed, returning empty result")
		metrics.FetchOutcomes.WithLabelValues(OutcomeFailed).Inc()
		return &FetchResult{Outcome: OutcomeFailed, Fingerprint: fingerprint}, nil
	}

	seed, neverKeys := o.reviewContext()

	loop := &topUpLoop{
		backend:   backend,
		health:    o.health,
		prompts:   o.prompts,
		validator: o.validator,
		enricher:  o.enricher,
		gate:      o.gate,
		index:     index,
		neverKeys: neverKeys,
		profile:   profile,
		settings:  settings,
		logger:    o.logger,
	}
	outcome := loop.run(ctx, seed)

	metrics.TopUpIterations.Observe(float64(outcome.attempts))
	metrics.FetchOutcomes.WithLabelValues(outcome.state).Inc()

	result := &FetchResult{
		Recommendations: outcome.accepted,
		Outcome:         outcome.state,
		Attempts:        outcome.attempts,
		FailOpen:        outcome.failOpen,
		Fingerprint:     fingerprint,
	}

	// Cancellation returns the best-effort partial result uncached.
	if ctx.Err() != nil {
		return result, nil
	}

	if len(result.Recommendations) > 0 {
		if err := o.cache.Set(fingerprint, result.Recommendations, settings.CacheTTL); err != nil {
			o.logger.Warn().Err(err).Msg("cache write failed")
		}
	}
	return result, nil
}

// reviewContext drains accepted review items as a result seed and loads
// the permanent never-suggest key set. Both degrade to empty on error.
func (o *Orchestrator) reviewContext() ([]models.Recommendation, map[string]struct{}) {
	if o.reviews == nil {
		return nil, nil
	}
	seed, err := o.reviews.DrainAccepted()
	if err != nil {
		o.logger.Warn().Err(err).Msg("review drain failed")
	}
	neverKeys, err := o.reviews.NeverKeys()
	if err != nil {
		o.logger.Warn().Err(err).Msg("never-keys load failed")
	}
	return seed, neverKeys
}

// exclusionList renders already-known identities for the prompt's
// do-not-repeat section: owned top artists plus everything accepted so far.
func exclusionList(profile *models.LibraryProfile, accepted []models.Recommendation, neverKeys map[string]struct{}) []string {
	var out []string
	if profile != nil {
		out = append(out, profile.TopArtists...)
	}
	for _, item := range accepted {
		if item.Album == "" {
			out = append(out, item.Artist)
			continue
		}
		out = append(out, item.Artist+" - "+item.Album)
	}
	for key := range neverKeys {
		out = append(out, strings.ReplaceAll(key, "|", " - "))
	}
	return out
}
