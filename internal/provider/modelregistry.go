// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// registryRefreshInterval is how long a fetched registry is served before
// a refresh is attempted.
const registryRefreshInterval = 10 * time.Minute

// RegistryModel is one external model-registry entry: it can rewrite a
// provider's model selection and its authentication requirement.
type RegistryModel struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// CredentialEnv names the environment variable expected to supply
	// the credential for this entry. Empty means the locally configured
	// key is used as-is.
	CredentialEnv string `json:"credential_env,omitempty"`
}

// ModelRegistry is the payload served by the external registry endpoint.
type ModelRegistry struct {
	Models []RegistryModel `json:"models"`
}

// ModelFor returns the first entry for a selector.
func (r *ModelRegistry) ModelFor(selector string) (RegistryModel, bool) {
	for _, m := range r.Models {
		if m.Provider == selector {
			return m, true
		}
	}
	return RegistryModel{}, false
}

// RegistryClient fetches the external model registry.
type RegistryClient interface {
	FetchRegistry(ctx context.Context) (*ModelRegistry, error)
}

// HTTPRegistryClient fetches the registry from a JSON endpoint.
type HTTPRegistryClient struct {
	URL    string
	Client *http.Client
}

// FetchRegistry retrieves and decodes the registry document.
func (c *HTTPRegistryClient) FetchRegistry(ctx context.Context) (*ModelRegistry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch model registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model registry returned %d", resp.StatusCode)
	}

	var reg ModelRegistry
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, fmt.Errorf("decode model registry: %w", err)
	}
	return &reg, nil
}

// RegistryCache serves the external model registry behind a refresh gate:
// one mutex guards refresh so concurrent callers never issue redundant
// fetches, and the previous value is served when a refresh fails.
type RegistryCache struct {
	client RegistryClient
	logger zerolog.Logger

	mu        sync.Mutex
	cached    *ModelRegistry
	fetchedAt time.Time
	now       func() time.Time
}

// NewRegistryCache creates a cache around a registry client.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRegistryCache(client RegistryClient, logger zerolog.Logger) *RegistryCache {
	return &RegistryCache{
		client: client,
		logger: logger.With().Str("component", "modelregistry").Logger(),
		now:    time.Now,
	}
}

// GetOrRefresh returns the cached registry, refreshing it when the
// refresh interval has elapsed. On refresh failure the stale value is
// served; an error is returned only when no value has ever been fetched.
func (c *RegistryCache) GetOrRefresh(ctx context.Context) (*ModelRegistry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.fetchedAt) < registryRefreshInterval {
		return c.cached, nil
	}

	reg, err := c.client.FetchRegistry(ctx)
	if err != nil {
		if c.cached != nil {
			c.logger.Warn().Err(err).Msg("registry refresh failed, serving stale value")
			return c.cached, nil
		}
		return nil, fmt.Errorf("model registry unavailable: %w", err)
	}

	c.cached = reg
	c.fetchedAt = c.now()
	return reg, nil
}
