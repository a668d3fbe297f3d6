// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package models

import (
	"fmt"
	"sort"
)

// dominantTagLimit caps the ranked dominant-tag list.
const dominantTagLimit = 12

// StyleContext holds per-entity style-tag assignments and the derived
// coverage statistics. It is built once per profile and read concurrently
// by multiple downstream consumers; it must not be mutated after Finalize.
type StyleContext struct {
	// ArtistTags maps artist ID to its sorted style tags.
	ArtistTags map[int64][]string `json:"artist_tags"`

	// AlbumTags maps album ID to its sorted style tags. Albums without
	// tags of their own inherit the owning artist's tags.
	AlbumTags map[int64][]string `json:"album_tags"`

	// Coverage counts, per tag, how many entities carry it.
	Coverage map[string]int `json:"coverage"`

	// TagIndex maps a tag back to the entity keys carrying it, sorted.
	// Entity keys are "artist:<id>" or "album:<id>".
	TagIndex map[string][]string `json:"tag_index"`

	// Dominant is the ranked dominant-tag list, computed by Finalize.
	Dominant []string `json:"dominant"`

	finalized bool
}

// NewStyleContext returns an empty, unfinalized StyleContext.
func NewStyleContext() *StyleContext {
	return &StyleContext{
		ArtistTags: make(map[int64][]string),
		AlbumTags:  make(map[int64][]string),
		Coverage:   make(map[string]int),
		TagIndex:   make(map[string][]string),
	}
}

// ArtistKey formats the tag-index key for an artist.
func ArtistKey(id int64) string { return fmt.Sprintf("artist:%d", id) }

// AlbumKey formats the tag-index key for an album.
func AlbumKey(id int64) string { return fmt.Sprintf("album:%d", id) }

// Finalize sorts the index slices and computes the dominant-tag ranking:
// top tags by coverage count, ties broken by tag name ascending so the
// result is deterministic across builds. After Finalize the context is
// immutable.
func (sc *StyleContext) Finalize() {
	if sc.finalized {
		return
	}

	for _, ids := range sc.TagIndex {
		sort.Strings(ids)
	}

	tags := make([]string, 0, len(sc.Coverage))
	for tag := range sc.Coverage {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if sc.Coverage[tags[i]] != sc.Coverage[tags[j]] {
			return sc.Coverage[tags[i]] > sc.Coverage[tags[j]]
		}
		return tags[i] < tags[j]
	})

	if len(tags) > dominantTagLimit {
		tags = tags[:dominantTagLimit]
	}
	sc.Dominant = tags
	sc.finalized = true
}

// Finalized reports whether Finalize has run.
func (sc *StyleContext) Finalized() bool { return sc.finalized }

// TagsForAlbum returns the album's tags, falling back to the owning
// artist's tags when the album has none.
func (sc *StyleContext) TagsForAlbum(albumID, artistID int64) []string {
	if tags, ok := sc.AlbumTags[albumID]; ok && len(tags) > 0 {
		return tags
	}
	return sc.ArtistTags[artistID]
}
