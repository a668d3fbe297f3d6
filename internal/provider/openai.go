// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/validation"
)

// Default endpoints per selector for the OpenAI-compatible wire format.
var defaultBaseURLs = map[string]string{
	SelectorOpenAI:     "https://api.openai.com/v1",
	SelectorOpenRouter: "https://openrouter.ai/api/v1",
	SelectorOllama:     "http://127.0.0.1:11434/v1",
	SelectorLMStudio:   "http://127.0.0.1:1234/v1",
}

const defaultMaxRetries = 3

// OpenAICompatible talks the chat-completions wire format shared by
// OpenAI, OpenRouter, Ollama, and LM Studio.
type OpenAICompatible struct {
	selector string
	baseURL  string
	apiKey   string
	model    string
	local    bool
	retries  uint
	client   *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// NewOpenAICompatible creates a provider for any chat-completions backend.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewOpenAICompatible(cfg Config, logger zerolog.Logger) *OpenAICompatible {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[cfg.Selector]
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultMaxRetries
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &OpenAICompatible{
		selector: cfg.Selector,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		local:    IsLocalSelector(cfg.Selector),
		retries:  retries,
		client:   &http.Client{Timeout: cfg.EffectiveTimeout()},
		limiter:  limiter,
		logger:   logger.With().Str("provider", cfg.Selector).Logger(),
	}
}

// Name identifies the backend, including the model when set.
func (p *OpenAICompatible) Name() string {
	if p.model == "" {
		return p.selector
	}
	return p.selector + ":" + p.model
}

// IsLocal reports whether inference runs on-machine.
func (p *OpenAICompatible) IsLocal() bool { return p.local }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GetRecommendations sends the prompt and parses the JSON candidate list.
// Transient transport failures (5xx, 429, network) are retried with
// bounded exponential backoff inside this one call.
func (p *OpenAICompatible) GetRecommendations(ctx context.Context, prompt string) ([]models.Recommendation, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var content string
	err := retry.Do(
		func() error {
			var err error
			content, err = p.complete(ctx, prompt)
			return err
		},
		retry.Attempts(p.retries),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(isTransient),
	)
	if err != nil {
		return nil, err
	}

	items, err := validation.ParsePayload(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.selector, err)
	}
	return items, nil
}

// transportError marks failures worth retrying within one call.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func (p *OpenAICompatible) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &transportError{fmt.Errorf("%s request: %w", p.selector, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &transportError{fmt.Errorf("%s response read: %w", p.selector, err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &transportError{fmt.Errorf("%s returned %d", p.selector, resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %d: %s", p.selector, resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%s decode response: %w", p.selector, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s error: %s", p.selector, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.selector)
	}
	return parsed.Choices[0].Message.Content, nil
}

// TestConnection lists models, which exercises both reachability and
// authentication without burning completion tokens.
func (p *OpenAICompatible) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("build models request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", p.selector, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s connection test returned %d", p.selector, resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
