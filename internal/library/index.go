// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package library

import (
	"context"
	"fmt"

	"github.com/resonarr/resonarr/internal/validation"
)

// BuildIndex reads the collection and produces the duplicate-filter index.
// Unlike Analyze this propagates read errors: without a real index the
// duplicate filter would wave library content through.
func (a *Analyzer) BuildIndex(ctx context.Context) (*validation.LibraryIndex, error) {
	artists, err := a.artists.GetAllArtists(ctx)
	if err != nil {
		return nil, fmt.Errorf("get artists: %w", err)
	}
	albums, err := a.albums.GetAllAlbums(ctx)
	if err != nil {
		return nil, fmt.Errorf("get albums: %w", err)
	}

	byID := make(map[int64]string, len(artists))
	names := make([]string, 0, len(artists))
	for _, artist := range artists {
		byID[artist.ID] = artist.Name
		names = append(names, artist.Name)
	}

	pairs := make([][2]string, 0, len(albums))
	for _, album := range albums {
		pairs = append(pairs, [2]string{byID[album.ArtistID], album.Title})
	}

	return validation.NewLibraryIndex(names, pairs), nil
}
