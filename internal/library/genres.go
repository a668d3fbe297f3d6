// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package library

import (
	"strings"

	"github.com/resonarr/resonarr/internal/models"
)

// genreVocabulary is the fixed keyword set matched against free-text
// overviews when an entity has no structured genre tags.
var genreVocabulary = []string{
	"rock", "pop", "jazz", "blues", "metal", "punk", "folk", "country",
	"electronic", "ambient", "techno", "house", "hip hop", "rap", "r&b",
	"soul", "funk", "reggae", "classical", "opera", "indie", "alternative",
	"psychedelic", "progressive", "shoegaze", "grunge", "disco", "ska",
	"gospel", "latin", "world", "experimental", "industrial", "synthwave",
}

// extractArtistGenres returns the artist's structured genres, falling back
// to keyword-matching the overview text against the fixed vocabulary.
func extractArtistGenres(artist *models.Artist) []string {
	if genres := normalizeGenres(artist.Genres); len(genres) > 0 {
		return genres
	}
	return matchVocabulary(artist.Overview)
}

// extractAlbumGenres returns the album's own structured genres. Fallback to
// the owning artist's tags is resolved later by the style context builder.
func extractAlbumGenres(album *models.Album) []string {
	return normalizeGenres(album.Genres)
}

// normalizeGenres lowercases, trims and deduplicates a genre list while
// preserving first-seen order.
func normalizeGenres(genres []string) []string {
	if len(genres) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// matchVocabulary scans free text for known genre keywords.
func matchVocabulary(text string) []string {
	if text == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	var out []string
	for _, word := range genreVocabulary {
		if strings.Contains(lowered, word) {
			out = append(out, word)
		}
	}
	return out
}
