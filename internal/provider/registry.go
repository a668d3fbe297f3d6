// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Registry constructs providers from a selector plus configuration.
// An optional external model registry may override a provider's model
// selection at creation time; when the override's requirements cannot be
// satisfied the registry degrades to the unmodified local configuration
// rather than failing.
type Registry struct {
	// modelRegistry is nil when the external registry feature is off.
	// The switch is an explicit construction-time value, not ambient
	// process state.
	modelRegistry *RegistryCache

	// credentials resolves named credentials; defaults to os.Getenv.
	// Injected for tests.
	credentials func(string) string

	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithModelRegistry enables the external model-registry override.
func WithModelRegistry(cache *RegistryCache) Option {
	return func(r *Registry) { r.modelRegistry = cache }
}

// WithCredentialLookup replaces the credential resolver.
func WithCredentialLookup(fn func(string) string) Option {
	return func(r *Registry) { r.credentials = fn }
}

// NewRegistry creates a provider registry.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRegistry(logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		credentials: os.Getenv,
		logger:      logger.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAvailable reports whether a provider could be constructed from the
// configuration: required credentials and URLs are present. No network
// calls are made.
func (r *Registry) IsAvailable(cfg Config) bool {
	switch cfg.Selector {
	case SelectorOpenAI, SelectorOpenRouter, SelectorGemini:
		return cfg.APIKey != ""
	case SelectorOllama, SelectorLMStudio:
		return cfg.BaseURL != ""
	default:
		return false
	}
}

// CreateProvider constructs the provider for a selector. Expected
// fallback paths (missing credentials, unknown selector) come back as
// Unavailable results, never as errors.
func (r *Registry) CreateProvider(ctx context.Context, cfg Config) CreationResult {
	if !r.IsAvailable(cfg) {
		return NotAvailable(r.unavailableReason(cfg))
	}

	cfg = r.applyRegistryOverride(ctx, cfg)

	switch cfg.Selector {
	case SelectorOpenAI, SelectorOpenRouter, SelectorOllama, SelectorLMStudio:
		return Created(NewOpenAICompatible(cfg, r.logger))
	case SelectorGemini:
		p, err := NewGemini(ctx, cfg, r.logger)
		if err != nil {
			return NotAvailable(fmt.Sprintf("gemini client: %v", err))
		}
		return Created(p)
	default:
		return NotAvailable(fmt.Sprintf("unknown provider selector %q", cfg.Selector))
	}
}

func (r *Registry) unavailableReason(cfg Config) string {
	switch cfg.Selector {
	case SelectorOpenAI, SelectorOpenRouter, SelectorGemini:
		return fmt.Sprintf("%s: missing API key", cfg.Selector)
	case SelectorOllama, SelectorLMStudio:
		return fmt.Sprintf("%s: missing base URL", cfg.Selector)
	default:
		return fmt.Sprintf("unknown provider selector %q", cfg.Selector)
	}
}

// applyRegistryOverride rewrites the model selection from the external
// registry when possible. Any unsatisfied requirement falls back to the
// local configuration; registry unavailability is never a hard error.
func (r *Registry) applyRegistryOverride(ctx context.Context, cfg Config) Config {
	if r.modelRegistry == nil {
		return cfg
	}

	reg, err := r.modelRegistry.GetOrRefresh(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("model registry unavailable, using local configuration")
		return cfg
	}

	entry, ok := reg.ModelFor(cfg.Selector)
	if !ok {
		r.logger.Debug().Str("selector", cfg.Selector).Msg("no registry model for selector")
		return cfg
	}

	if entry.CredentialEnv != "" {
		cred := r.credentials(entry.CredentialEnv)
		if cred == "" {
			r.logger.Warn().
				Str("selector", cfg.Selector).
				Str("credential_env", entry.CredentialEnv).
				Msg("registry credential not supplied, using local configuration")
			return cfg
		}
		cfg.APIKey = cred
	}

	if entry.Model != "" {
		cfg.Model = entry.Model
	}
	r.logger.Debug().
		Str("selector", cfg.Selector).
		Str("model", cfg.Model).
		Msg("applied model registry override")
	return cfg
}
