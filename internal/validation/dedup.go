// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package validation

import (
	"strings"

	"github.com/resonarr/resonarr/internal/models"
)

// LibraryIndex is the set of identities already present in the collection,
// used to drop suggestions the listener already owns. Keys use the same
// normalization as Recommendation.Key.
type LibraryIndex struct {
	artists map[string]struct{}
	albums  map[string]struct{}
}

// NewLibraryIndex builds an index from artist names and "artist|album" pairs.
func NewLibraryIndex(artistNames []string, albumPairs [][2]string) *LibraryIndex {
	idx := &LibraryIndex{
		artists: make(map[string]struct{}, len(artistNames)),
		albums:  make(map[string]struct{}, len(albumPairs)),
	}
	for _, name := range artistNames {
		idx.artists[normalizeKey(name)] = struct{}{}
	}
	for _, pair := range albumPairs {
		idx.albums[normalizeKey(pair[0])+"|"+normalizeKey(pair[1])] = struct{}{}
	}
	return idx
}

// Contains reports whether the recommendation duplicates library content.
// Artist-only items match on artist name; album items match on the pair,
// so a new album by an owned artist is still a valid suggestion.
func (idx *LibraryIndex) Contains(r models.Recommendation) bool {
	if idx == nil {
		return false
	}
	if r.Album == "" {
		_, ok := idx.artists[normalizeKey(r.Artist)]
		return ok
	}
	_, ok := idx.albums[r.Key()]
	return ok
}

// FilterLibraryDuplicates removes items already present in the collection.
// This must run before batch dedup: the two filters match on different
// fingerprint spaces.
func FilterLibraryDuplicates(items []models.Recommendation, idx *LibraryIndex) (kept, dropped []models.Recommendation) {
	kept = make([]models.Recommendation, 0, len(items))
	for _, item := range items {
		if idx.Contains(item) {
			dropped = append(dropped, item)
			continue
		}
		kept = append(kept, item)
	}
	return kept, dropped
}

// DedupBatch removes duplicate items within one batch, keeping the first
// (highest-ranked) occurrence.
func DedupBatch(items []models.Recommendation) (kept []models.Recommendation, dropped int) {
	seen := make(map[string]struct{}, len(items))
	kept = make([]models.Recommendation, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, item)
	}
	return kept, dropped
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
