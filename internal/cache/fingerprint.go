// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/goccy/go-json"

	"github.com/resonarr/resonarr/internal/models"
)

// SchemaVersion is bumped whenever the cached result layout changes, so
// stale entries are invalidated without an explicit flush.
const SchemaVersion = 3

// profileSummaryLimit caps how many top genres and artists feed the
// fingerprint. Only the stable head of each ranking participates, so
// profiles differing in unranked tail metadata fingerprint identically.
const profileSummaryLimit = 5

// FingerprintInput collects every component of the cache identity.
type FingerprintInput struct {
	Provider         string      `json:"provider"`
	Model            string      `json:"model"`
	Mode             models.Mode `json:"mode"`
	Count            int         `json:"count"`
	ArtistOnly       bool        `json:"artist_only"`
	TopGenres        []string    `json:"top_genres"`
	TopArtists       []string    `json:"top_artists"`
	SchemaVersion    int         `json:"schema_version"`
	SanitizerVersion int         `json:"sanitizer_version"`
}

// Fingerprint computes the opaque cache key: a one-way hash over the
// provider identity, mode, requested count, a stable summary of the
// profile, and the schema and sanitizer version tokens. It is a pure
// function of its input and stable across process restarts.
func Fingerprint(in FingerprintInput) string {
	in.SchemaVersion = SchemaVersion
	in.TopGenres = stableSummary(in.TopGenres)
	in.TopArtists = stableSummary(in.TopArtists)

	payload, err := json.Marshal(in)
	if err != nil {
		// Marshal of plain strings and ints cannot fail; keep a
		// defined value anyway.
		payload = []byte(in.Provider + string(in.Mode))
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:10])
}

// FingerprintForProfile derives the fingerprint input summary from a
// library profile.
func FingerprintForProfile(profile *models.LibraryProfile, in FingerprintInput) string {
	if profile != nil {
		for _, g := range profile.TopGenres {
			in.TopGenres = append(in.TopGenres, g.Name)
		}
		in.TopArtists = append(in.TopArtists, profile.TopArtists...)
	}
	return Fingerprint(in)
}

// stableSummary truncates to the ranked head, then sorts so that equal
// sets fingerprint equally regardless of arrival order.
func stableSummary(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	if len(out) > profileSummaryLimit {
		out = out[:profileSummaryLimit]
	}
	sort.Strings(out)
	return out
}
