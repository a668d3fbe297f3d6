// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package config loads the layered application configuration:
// struct defaults, then an optional YAML file, then RESONARR_
// environment variables, with validation on the final result.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/resonarr/resonarr/internal/provider"
)

// Config is the full application configuration tree.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Storage   StorageConfig   `koanf:"storage"`
	Host      HostConfig      `koanf:"host"`
	Provider  provider.Config `koanf:"provider"`
	Registry  RegistryConfig  `koanf:"registry"`
	Recommend RecommendConfig `koanf:"recommend"`
	Enrich    EnrichConfig    `koanf:"enrich"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// StorageConfig locates the on-disk badger store. An empty DataDir runs
// the store in memory, which is only useful for tests.
type StorageConfig struct {
	DataDir string `koanf:"data_dir"`
}

// HostConfig locates the music collection server whose library is
// analyzed and extended.
type HostConfig struct {
	URL    string `koanf:"url" validate:"omitempty,url"`
	APIKey string `koanf:"api_key"`
}

// RegistryConfig controls the optional external model registry that can
// override the locally configured provider and model.
type RegistryConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"omitempty,url"`
}

// RecommendConfig tunes the recommendation pipeline.
type RecommendConfig struct {
	// Count is the number of recommendations per fetch.
	Count int `koanf:"count" validate:"min=1,max=100"`

	// Mode steers the prompt: similar, adjacent or exploratory.
	Mode string `koanf:"mode" validate:"oneof=similar adjacent exploratory"`

	// ArtistOnly requests artists instead of specific albums.
	ArtistOnly bool `koanf:"artist_only"`

	// MinConfidence is the safety gate's inclusive acceptance threshold.
	MinConfidence float64 `koanf:"min_confidence" validate:"min=0,max=1"`

	// RequireMBID demands an external identifier before acceptance.
	RequireMBID bool `koanf:"require_mbid"`

	// BackfillAggressiveness (0-2) picks the oversampling factor used
	// when top-up passes are needed.
	BackfillAggressiveness int `koanf:"backfill_aggressiveness" validate:"min=0,max=2"`

	// GuaranteeExact permits a final fail-open promotion from the
	// rejected pool when the retry budget runs out short of target.
	GuaranteeExact bool `koanf:"guarantee_exact"`

	// CacheTTL bounds how long a fetch result is served from cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// MaxAttempts caps provider round-trips per fetch.
	MaxAttempts int `koanf:"max_attempts" validate:"min=1,max=10"`
}

// EnrichConfig controls external identifier resolution.
type EnrichConfig struct {
	Enabled bool `koanf:"enabled"`

	// Strict drops items the resolver could not identify instead of
	// passing them to the safety gate.
	Strict bool `koanf:"strict"`
}

// defaultConfig returns the built-in defaults, overridden by file and env.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8686,
			CORSOrigins:     []string{"*"},
			RateLimit:       60,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			DataDir: "/data/resonarr",
		},
		Host: HostConfig{
			URL: "http://127.0.0.1:8687",
		},
		Provider: provider.Config{
			Selector:   provider.SelectorOllama,
			BaseURL:    "http://127.0.0.1:11434/v1",
			Model:      "llama3.1",
			MaxRetries: 3,
		},
		Registry: RegistryConfig{
			Enabled: false,
		},
		Recommend: RecommendConfig{
			Count:                  20,
			Mode:                   "similar",
			MinConfidence:          0.5,
			RequireMBID:            false,
			BackfillAggressiveness: 1,
			CacheTTL:               24 * time.Hour,
			MaxAttempts:            4,
		},
		Enrich: EnrichConfig{
			Enabled: true,
			Strict:  false,
		},
	}
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
