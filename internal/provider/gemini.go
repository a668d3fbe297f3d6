// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/validation"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini wraps the official genai client. JSON response mode keeps the
// payload parseable without prompt gymnastics.
type Gemini struct {
	cli     *genai.Client
	model   string
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewGemini creates a Gemini-backed provider.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewGemini(ctx context.Context, cfg Config, logger zerolog.Logger) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Gemini{
		cli:     cli,
		model:   model,
		limiter: limiter,
		logger:  logger.With().Str("provider", SelectorGemini).Logger(),
	}, nil
}

// Name identifies the backend and model.
func (g *Gemini) Name() string { return SelectorGemini + ":" + g.model }

// IsLocal reports false; Gemini is always remote.
func (g *Gemini) IsLocal() bool { return false }

// GetRecommendations sends the prompt in JSON response mode and parses
// the candidate list.
func (g *Gemini) GetRecommendations(ctx context.Context, prompt string) ([]models.Recommendation, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	items, err := validation.ParsePayload(resp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return items, nil
}

// TestConnection issues a minimal generation to verify credentials.
func (g *Gemini) TestConnection(ctx context.Context) error {
	_, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: "ping"}}}},
		nil,
	)
	if err != nil {
		return fmt.Errorf("gemini connection test: %w", err)
	}
	return nil
}
