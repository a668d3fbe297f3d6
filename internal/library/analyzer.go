// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package library

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
)

// profileTTL is how long a computed profile is served before re-analysis.
const profileTTL = 10 * time.Minute

// Limits on the ranked lists carried by the profile.
const (
	topGenreLimit   = 10
	topArtistLimit  = 20
	recentAddLimit  = 10
	deepArtistFloor = 5
	shallowCeiling  = 2
)

// ArtistService is the host collection boundary for artists.
type ArtistService interface {
	GetAllArtists(ctx context.Context) ([]models.Artist, error)
}

// AlbumService is the host collection boundary for albums.
type AlbumService interface {
	GetAllAlbums(ctx context.Context) ([]models.Album, error)
}

// Analyzer reads the collection and produces a statistical LibraryProfile.
// It is safe for concurrent use; concurrent callers within the profile TTL
// share one cached snapshot.
type Analyzer struct {
	artists ArtistService
	albums  AlbumService
	logger  zerolog.Logger

	// parallelThreshold is the combined entity count above which the
	// style context is built on the parallel path.
	parallelThreshold int

	mu       sync.Mutex
	cached   *models.LibraryProfile
	cachedAt time.Time
	now      func() time.Time
}

// NewAnalyzer creates a library analyzer.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAnalyzer(artists ArtistService, albums AlbumService, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		artists:           artists,
		albums:            albums,
		logger:            logger.With().Str("component", "library").Logger(),
		parallelThreshold: defaultParallelThreshold,
		now:               time.Now,
	}
}

// Analyze returns the current library profile. It never fails the fetch
// workflow: on any collection read error it logs the cause and returns a
// fixed fallback profile instead of propagating the error.
func (a *Analyzer) Analyze(ctx context.Context) *models.LibraryProfile {
	a.mu.Lock()
	if a.cached != nil && a.now().Sub(a.cachedAt) < profileTTL {
		cached := a.cached
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	profile, err := a.analyze(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("library analysis failed, serving fallback profile")
		return fallbackProfile(a.now())
	}

	a.mu.Lock()
	a.cached = profile
	a.cachedAt = a.now()
	a.mu.Unlock()

	return profile
}

// Invalidate discards the cached profile so the next Analyze re-reads the
// collection. Called after library mutations the host reports.
func (a *Analyzer) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}

func (a *Analyzer) analyze(ctx context.Context) (*models.LibraryProfile, error) {
	start := a.now()

	artists, err := a.artists.GetAllArtists(ctx)
	if err != nil {
		return nil, fmt.Errorf("get artists: %w", err)
	}
	albums, err := a.albums.GetAllAlbums(ctx)
	if err != nil {
		return nil, fmt.Errorf("get albums: %w", err)
	}

	genres := genreHistogram(artists, albums)
	styles := a.buildStyleContext(ctx, artists, albums)

	profile := &models.LibraryProfile{
		TotalArtists:  len(artists),
		TotalAlbums:   len(albums),
		TopGenres:     topGenres(genres, topGenreLimit),
		TopArtists:    topArtists(artists, albums, topArtistLimit),
		RecentlyAdded: recentlyAdded(artists, recentAddLimit, a.now()),
		Metadata: map[string]any{
			models.MetaEra:             eraLabel(albums),
			models.MetaNewReleaseRatio: newReleaseRatio(albums, a.now()),
			models.MetaCollectionStyle: collectionStyle(artists, albums),
			models.MetaGenreDiversity:  DiversityScore(genres),
		},
		Styles:      styles,
		GeneratedAt: a.now(),
	}

	a.logger.Debug().
		Int("artists", len(artists)).
		Int("albums", len(albums)).
		Int("genres", len(genres)).
		Int64("latency_ms", a.now().Sub(start).Milliseconds()).
		Msg("library profile built")

	return profile, nil
}

// fallbackProfile is served when the collection cannot be read. The
// analyzer must never abort the fetch workflow.
func fallbackProfile(now time.Time) *models.LibraryProfile {
	return &models.LibraryProfile{
		TopGenres:     []models.GenreCount{},
		TopArtists:    []string{},
		RecentlyAdded: []string{},
		Metadata: map[string]any{
			models.MetaEra:             "Unknown",
			models.MetaNewReleaseRatio: 0.0,
			models.MetaCollectionStyle: "Balanced",
			models.MetaGenreDiversity:  0.0,
		},
		GeneratedAt: now,
		Fallback:    true,
	}
}

// genreHistogram counts genre occurrences across artists and albums,
// falling back to keyword matching of free-text overviews when no
// structured genres exist.
func genreHistogram(artists []models.Artist, albums []models.Album) map[string]int {
	hist := make(map[string]int)
	for i := range artists {
		for _, g := range extractArtistGenres(&artists[i]) {
			hist[g]++
		}
	}
	for i := range albums {
		for _, g := range normalizeGenres(albums[i].Genres) {
			hist[g]++
		}
	}
	return hist
}

func topGenres(hist map[string]int, limit int) []models.GenreCount {
	out := make([]models.GenreCount, 0, len(hist))
	for name, count := range hist {
		out = append(out, models.GenreCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// topArtists ranks artists by album count, ties broken by name for
// deterministic prompts and cache fingerprints.
func topArtists(artists []models.Artist, albums []models.Album, limit int) []string {
	counts := make(map[int64]int, len(artists))
	for i := range albums {
		counts[albums[i].ArtistID]++
	}

	ranked := make([]models.Artist, len(artists))
	copy(ranked, artists)
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i].ID] != counts[ranked[j].ID] {
			return counts[ranked[i].ID] > counts[ranked[j].ID]
		}
		return ranked[i].Name < ranked[j].Name
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	names := make([]string, len(ranked))
	for i := range ranked {
		names[i] = ranked[i].Name
	}
	return names
}

func recentlyAdded(artists []models.Artist, limit int, now time.Time) []string {
	ranked := make([]models.Artist, len(artists))
	copy(ranked, artists)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Added.After(ranked[j].Added)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	names := make([]string, 0, len(ranked))
	for i := range ranked {
		if now.Sub(ranked[i].Added) < 365*24*time.Hour {
			names = append(names, ranked[i].Name)
		}
	}
	return names
}

// eraLabel maps the two most frequent release decades to a coarse era.
func eraLabel(albums []models.Album) string {
	decades := make(map[int]int)
	for i := range albums {
		if albums[i].ReleaseDate.IsZero() {
			continue
		}
		year := albums[i].ReleaseDate.Year()
		decades[year-year%10]++
	}
	if len(decades) == 0 {
		return "Unknown"
	}

	type bucket struct {
		decade, count int
	}
	ranked := make([]bucket, 0, len(decades))
	for d, c := range decades {
		ranked = append(ranked, bucket{d, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].decade > ranked[j].decade
	})

	// Average the top two decades so a split collection lands between them.
	top := ranked[0].decade
	if len(ranked) > 1 {
		top = (ranked[0].decade + ranked[1].decade) / 2
	}

	switch {
	case top < 1970:
		return "Classic"
	case top < 1990:
		return "Golden Age"
	case top < 2010:
		return "Modern"
	default:
		return "Contemporary"
	}
}

// newReleaseRatio is the fraction of dated albums released within the
// last 24 months.
func newReleaseRatio(albums []models.Album, now time.Time) float64 {
	dated, recent := 0, 0
	cutoff := now.AddDate(-2, 0, 0)
	for i := range albums {
		if albums[i].ReleaseDate.IsZero() {
			continue
		}
		dated++
		if albums[i].ReleaseDate.After(cutoff) {
			recent++
		}
	}
	if dated == 0 {
		return 0
	}
	return float64(recent) / float64(dated)
}

// collectionStyle classifies the collector from the per-artist album-count
// distribution: >40% deep artists is a Completionist, >60% shallow a
// Casual listener, anything else Balanced.
func collectionStyle(artists []models.Artist, albums []models.Album) string {
	if len(artists) == 0 {
		return "Balanced"
	}

	counts := make(map[int64]int, len(artists))
	for i := range albums {
		counts[albums[i].ArtistID]++
	}

	deep, shallow := 0, 0
	for i := range artists {
		switch n := counts[artists[i].ID]; {
		case n >= deepArtistFloor:
			deep++
		case n <= shallowCeiling:
			shallow++
		}
	}

	total := float64(len(artists))
	switch {
	case float64(deep)/total > 0.4:
		return "Completionist"
	case float64(shallow)/total > 0.6:
		return "Casual"
	default:
		return "Balanced"
	}
}

// DiversityScore computes genre diversity as normalized Shannon entropy
// over the genre histogram. The score is always in [0, 1]: a single-genre
// collection scores 0, a perfectly uniform N-genre collection scores 1.
func DiversityScore(hist map[string]int) float64 {
	if len(hist) <= 1 {
		return 0
	}

	total := 0
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 0
	}

	entropy := 0.0
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}

	score := entropy / math.Log2(float64(len(hist)))
	// Guard against tiny float excursions above 1.
	return math.Min(score, 1.0)
}
