// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/resonarr/resonarr/internal/models"
)

const (
	defaultMusicBrainzURL = "https://musicbrainz.org/ws/2"

	// MusicBrainz policy caps anonymous clients at one request per second.
	musicBrainzRPS = 1

	// minMatchScore rejects fuzzy search hits too weak to trust.
	minMatchScore = 90

	userAgent = "Resonarr/1.0 (https://github.com/resonarr/resonarr)"
)

// MusicBrainz resolves artist and release-group MBIDs via the public
// search API, rate limited to the service's anonymous quota.
type MusicBrainz struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// MusicBrainzOption configures the client.
type MusicBrainzOption func(*MusicBrainz)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) MusicBrainzOption {
	return func(m *MusicBrainz) { m.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) MusicBrainzOption {
	return func(m *MusicBrainz) { m.client = c }
}

// NewMusicBrainz creates a rate-limited MusicBrainz enricher.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMusicBrainz(logger zerolog.Logger, opts ...MusicBrainzOption) *MusicBrainz {
	m := &MusicBrainz{
		baseURL: defaultMusicBrainzURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(musicBrainzRPS), 1),
		logger:  logger.With().Str("component", "musicbrainz").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type searchResult struct {
	Artists []struct {
		ID    string `json:"id"`
		Score int    `json:"score"`
		Name  string `json:"name"`
	} `json:"artists"`
	ReleaseGroups []struct {
		ID    string `json:"id"`
		Score int    `json:"score"`
		Title string `json:"title"`
	} `json:"release-groups"`
}

// EnrichWithExternalIDs looks up an artist MBID for every item missing
// one, and a release-group MBID for full-album items. Lookup misses are
// logged and skipped; only context cancellation aborts the batch.
func (m *MusicBrainz) EnrichWithExternalIDs(ctx context.Context, items []models.Recommendation) ([]models.Recommendation, error) {
	out := make([]models.Recommendation, len(items))
	copy(out, items)

	// Artist lookups are cached within the batch; providers often return
	// several albums by one artist.
	artistIDs := make(map[string]string)

	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("enrichment aborted: %w", err)
		}

		if out[i].ArtistMBID == "" {
			key := strings.ToLower(out[i].Artist)
			id, seen := artistIDs[key]
			if !seen {
				id = m.lookupArtist(ctx, out[i].Artist)
				artistIDs[key] = id
			}
			out[i].ArtistMBID = id
		}

		if out[i].Album != "" && out[i].AlbumMBID == "" {
			out[i].AlbumMBID = m.lookupReleaseGroup(ctx, out[i].Artist, out[i].Album)
		}
	}
	return out, nil
}

func (m *MusicBrainz) lookupArtist(ctx context.Context, name string) string {
	result, err := m.search(ctx, "artist", fmt.Sprintf(`artist:%q`, name))
	if err != nil {
		m.logger.Debug().Err(err).Str("artist", name).Msg("artist lookup failed")
		return ""
	}
	if len(result.Artists) == 0 || result.Artists[0].Score < minMatchScore {
		return ""
	}
	return result.Artists[0].ID
}

func (m *MusicBrainz) lookupReleaseGroup(ctx context.Context, artist, album string) string {
	query := fmt.Sprintf(`releasegroup:%q AND artist:%q`, album, artist)
	result, err := m.search(ctx, "release-group", query)
	if err != nil {
		m.logger.Debug().Err(err).Str("album", album).Msg("release-group lookup failed")
		return ""
	}
	if len(result.ReleaseGroups) == 0 || result.ReleaseGroups[0].Score < minMatchScore {
		return ""
	}
	return result.ReleaseGroups[0].ID
}

func (m *MusicBrainz) search(ctx context.Context, entity, query string) (*searchResult, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := fmt.Sprintf("%s/%s?query=%s&limit=1&fmt=json", m.baseURL, entity, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("musicbrainz status %d", resp.StatusCode)
	}

	var result searchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
