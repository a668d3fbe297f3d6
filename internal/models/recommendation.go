// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package models

import (
	"fmt"
	"strings"
)

// Mode selects how adventurous the generated suggestions should be.
type Mode string

const (
	// ModeSimilar steers suggestions toward close neighbors of the library.
	ModeSimilar Mode = "similar"
	// ModeAdjacent allows suggestions one step outside the library's core genres.
	ModeAdjacent Mode = "adjacent"
	// ModeExploratory allows suggestions well outside the library's comfort zone.
	ModeExploratory Mode = "exploratory"
)

// Valid reports whether the mode is a known value.
func (m Mode) Valid() bool {
	switch m {
	case ModeSimilar, ModeAdjacent, ModeExploratory:
		return true
	}
	return false
}

// Recommendation is a single candidate suggestion produced by a provider.
// Once placed in a final result list it is never mutated; intermediate
// pipeline stages produce modified copies instead.
type Recommendation struct {
	// Artist is the recommended artist name. Always required.
	Artist string `json:"artist" validate:"required"`

	// Album is the recommended album title. Empty in artist-only mode.
	Album string `json:"album,omitempty"`

	// Year is the release year, if the provider stated one.
	Year int `json:"year,omitempty"`

	// Genre is a free-form genre tag.
	Genre string `json:"genre,omitempty"`

	// Confidence is the provider's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// Reason is the provider's free-text justification.
	Reason string `json:"reason,omitempty"`

	// ArtistMBID is the MusicBrainz artist identifier, attached by enrichment.
	ArtistMBID string `json:"artist_mbid,omitempty"`

	// AlbumMBID is the MusicBrainz release-group identifier.
	AlbumMBID string `json:"album_mbid,omitempty"`
}

// WithoutAlbum returns a copy with album-level fields cleared.
// Used when the fetch runs in artist-only mode.
func (r Recommendation) WithoutAlbum() Recommendation {
	out := r
	out.Album = ""
	out.AlbumMBID = ""
	out.Year = 0
	return out
}

// HasMBID reports whether the recommendation carries an external identifier
// appropriate for its shape: artist-only items need an artist MBID, album
// items need a release-group MBID.
func (r Recommendation) HasMBID() bool {
	if r.Album == "" {
		return r.ArtistMBID != ""
	}
	return r.AlbumMBID != ""
}

// Key returns the case-insensitive identity used for batch deduplication.
func (r Recommendation) Key() string {
	artist := strings.ToLower(strings.TrimSpace(r.Artist))
	album := strings.ToLower(strings.TrimSpace(r.Album))
	if album == "" {
		return artist
	}
	return artist + "|" + album
}

// String renders a compact human-readable form for logs.
func (r Recommendation) String() string {
	if r.Album == "" {
		return fmt.Sprintf("%s (%.2f)", r.Artist, r.Confidence)
	}
	return fmt.Sprintf("%s - %s (%.2f)", r.Artist, r.Album, r.Confidence)
}
