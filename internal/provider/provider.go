// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package provider

import (
	"context"
	"time"

	"github.com/resonarr/resonarr/internal/models"
)

// Provider is an interchangeable text-completion backend capable of
// turning a prompt into recommendation candidates. The orchestrator is
// backend-agnostic; all vendor differences live behind this interface.
type Provider interface {
	// Name identifies the backend for health tracking and logs.
	Name() string

	// IsLocal reports whether inference runs on-machine. Local backends
	// get longer timeout windows and higher oversampling ceilings.
	IsLocal() bool

	// GetRecommendations sends the prompt and returns parsed candidates.
	// Transient transport failures are retried internally with bounded
	// exponential backoff before an error surfaces.
	GetRecommendations(ctx context.Context, prompt string) ([]models.Recommendation, error)

	// TestConnection verifies the backend is reachable with the
	// configured credentials.
	TestConnection(ctx context.Context) error
}

// Selector names for the supported backends.
const (
	SelectorOpenAI     = "openai"
	SelectorOpenRouter = "openrouter"
	SelectorOllama     = "ollama"
	SelectorLMStudio   = "lmstudio"
	SelectorGemini     = "gemini"
)

// localSelectors are the on-machine provider class.
var localSelectors = map[string]bool{
	SelectorOllama:   true,
	SelectorLMStudio: true,
}

// IsLocalSelector reports whether a selector names an on-machine backend.
func IsLocalSelector(selector string) bool { return localSelectors[selector] }

// Config is the per-provider construction configuration, supplied by the
// host settings layer.
type Config struct {
	Selector          string        `koanf:"selector" validate:"required"`
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey            string        `koanf:"api_key"`
	Model             string        `koanf:"model"`
	Timeout           time.Duration `koanf:"timeout"`
	MaxRetries        uint          `koanf:"max_retries" validate:"max=10"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"min=0"`
}

// Timeout windows per provider class. Local inference is commonly slower,
// especially once a deficit forces another inference pass.
const (
	remoteTimeout = 60 * time.Second
	localTimeout  = 5 * time.Minute
)

// EffectiveTimeout resolves the timeout for one provider call. Computed
// once at the start of generation and held for the call's duration.
func (c Config) EffectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	if IsLocalSelector(c.Selector) {
		return localTimeout
	}
	return remoteTimeout
}

// UnavailableError reports a provider that cannot be constructed, for
// callers that need the condition as an error value.
type UnavailableError struct {
	Selector string
	Reason   string
}

func (e *UnavailableError) Error() string {
	return "provider " + e.Selector + " unavailable: " + e.Reason
}

// CreationResult is the explicit outcome of provider construction.
// "Unavailable" is an expected fallback path, never an error.
type CreationResult struct {
	Provider    Provider
	Unavailable bool
	Reason      string
}

// Created wraps a successfully constructed provider.
func Created(p Provider) CreationResult {
	return CreationResult{Provider: p}
}

// NotAvailable marks a provider that cannot be constructed, with the
// missing prerequisite as the reason.
func NotAvailable(reason string) CreationResult {
	return CreationResult{Unavailable: true, Reason: reason}
}
