// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package validation

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
)

// Filter reasons recorded per dropped item.
const (
	ReasonMissingArtist  = "missing artist name"
	ReasonMissingAlbum   = "missing album title"
	ReasonRejectPattern  = "matches rejection pattern"
	ReasonLowConfidence  = "below confidence threshold"
	ReasonMissingMBID    = "missing external identifier"
	ReasonLibraryDupe    = "already in library"
	ReasonBatchDuplicate = "duplicate in batch"
)

// defaultRejectPatterns filters placeholder and refusal noise models emit
// when they run out of real suggestions.
var defaultRejectPatterns = []string{
	`(?i)^various artists$`,
	`(?i)^unknown( artist)?$`,
	`(?i)^n/?a$`,
	`(?i)\[.*placeholder.*\]`,
	`(?i)^(sorry|i (cannot|can't))`,
}

// BatchResult is the outcome of validating one provider batch.
type BatchResult struct {
	// Valid holds the surviving items, order preserved.
	Valid []models.Recommendation

	// Filtered holds the dropped items.
	Filtered []models.Recommendation

	// Reasons maps a dropped item's Key() to the filter reason.
	Reasons map[string]string

	// Counts per filter reason, for metrics.
	Counts map[string]int
}

// Validator applies schema and sanity filtering to candidate batches.
// It is safe for concurrent use after construction.
type Validator struct {
	patterns []*regexp.Regexp
	logger   zerolog.Logger
}

// NewValidator compiles the default rejection patterns plus any extras
// from configuration. Invalid extra patterns are logged and skipped.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewValidator(extraPatterns []string, logger zerolog.Logger) *Validator {
	v := &Validator{logger: logger.With().Str("component", "validation").Logger()}

	for _, p := range append(append([]string{}, defaultRejectPatterns...), extraPatterns...) {
		re, err := regexp.Compile(p)
		if err != nil {
			v.logger.Warn().Str("pattern", p).Err(err).Msg("skipping invalid rejection pattern")
			continue
		}
		v.patterns = append(v.patterns, re)
	}
	return v
}

// ValidateBatch filters a candidate batch. Malformed items are dropped
// with a recorded reason, never raised as errors. Confidence values are
// clamped into [0, 1] before any threshold comparison.
func (v *Validator) ValidateBatch(items []models.Recommendation, allowArtistOnly bool) BatchResult {
	result := BatchResult{
		Valid:   make([]models.Recommendation, 0, len(items)),
		Reasons: make(map[string]string),
		Counts:  make(map[string]int),
	}

	for _, item := range items {
		item.Artist = strings.TrimSpace(item.Artist)
		item.Album = strings.TrimSpace(item.Album)
		item.Confidence = clamp01(item.Confidence)

		if reason := v.check(item, allowArtistOnly); reason != "" {
			result.Filtered = append(result.Filtered, item)
			result.Reasons[item.Key()] = reason
			result.Counts[reason]++
			continue
		}

		if allowArtistOnly {
			item = item.WithoutAlbum()
		}
		result.Valid = append(result.Valid, item)
	}

	if len(result.Filtered) > 0 {
		v.logger.Debug().
			Int("valid", len(result.Valid)).
			Int("filtered", len(result.Filtered)).
			Msg("batch validated")
	}
	return result
}

func (v *Validator) check(item models.Recommendation, allowArtistOnly bool) string {
	if item.Artist == "" {
		return ReasonMissingArtist
	}
	if !allowArtistOnly && item.Album == "" {
		return ReasonMissingAlbum
	}
	for _, re := range v.patterns {
		if re.MatchString(item.Artist) || (item.Album != "" && re.MatchString(item.Album)) {
			return ReasonRejectPattern
		}
	}
	return ""
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
