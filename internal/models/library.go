// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package models

import "time"

// Artist is a library artist as exposed by the host collection service.
type Artist struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Genres    []string  `json:"genres,omitempty"`
	Overview  string    `json:"overview,omitempty"`
	Added     time.Time `json:"added"`
	Monitored bool      `json:"monitored"`
}

// Album is a library album as exposed by the host collection service.
type Album struct {
	ID          int64     `json:"id"`
	ArtistID    int64     `json:"artist_id"`
	Title       string    `json:"title"`
	Genres      []string  `json:"genres,omitempty"`
	ReleaseDate time.Time `json:"release_date,omitzero"`
	Added       time.Time `json:"added"`
	Monitored   bool      `json:"monitored"`
}

// GenreCount is one bucket of the ranked genre histogram.
type GenreCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// LibraryProfile is a derived, read-only snapshot of the collection at
// analysis time. It is never mutated after construction and is shared
// read-only with the prompt builder and the cache-key builder.
type LibraryProfile struct {
	TotalArtists  int          `json:"total_artists"`
	TotalAlbums   int          `json:"total_albums"`
	TopGenres     []GenreCount `json:"top_genres"`
	TopArtists    []string     `json:"top_artists"`
	RecentlyAdded []string     `json:"recently_added"`

	// Metadata holds open-ended derived statistics: era label, new-release
	// ratio, collection style, genre diversity score.
	Metadata map[string]any `json:"metadata"`

	// Styles is the per-entity style-tag index, nil when the collection
	// could not be read.
	Styles *StyleContext `json:"-"`

	GeneratedAt time.Time `json:"generated_at"`

	// Fallback marks a degraded profile returned after an analysis failure.
	Fallback bool `json:"fallback,omitempty"`
}

// Metadata keys populated by the analyzer.
const (
	MetaEra             = "era"
	MetaNewReleaseRatio = "new_release_ratio"
	MetaCollectionStyle = "collection_style"
	MetaGenreDiversity  = "genre_diversity"
)
