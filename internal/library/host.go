// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package library

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
)

// HostClient reads the music collection from the host server's REST API.
// It implements ArtistService and AlbumService.
type HostClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHostClient creates a collection client for the host server.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHostClient(baseURL, apiKey string, logger zerolog.Logger) *HostClient {
	return &HostClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With().Str("component", "hostclient").Logger(),
	}
}

// GetAllArtists fetches every artist in the collection.
func (c *HostClient) GetAllArtists(ctx context.Context) ([]models.Artist, error) {
	var artists []models.Artist
	if err := c.get(ctx, "/api/v1/artist", &artists); err != nil {
		return nil, fmt.Errorf("fetch artists: %w", err)
	}
	return artists, nil
}

// GetAllAlbums fetches every album in the collection.
func (c *HostClient) GetAllAlbums(ctx context.Context) ([]models.Album, error) {
	var albums []models.Album
	if err := c.get(ctx, "/api/v1/album", &albums); err != nil {
		return nil, fmt.Errorf("fetch albums: %w", err)
	}
	return albums, nil
}

func (c *HostClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("host request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("host returned %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode host response: %w", err)
	}
	return nil
}
