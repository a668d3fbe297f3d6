// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package enrich resolves external identifiers for recommendations.
// Providers return names; downstream automation wants MusicBrainz IDs.
// Enrichment is best-effort: a lookup miss leaves the item name-only and
// the safety gate decides what to do with it.
package enrich

import (
	"context"

	"github.com/resonarr/resonarr/internal/models"
)

// Enricher resolves external identifiers for a batch of recommendations.
type Enricher interface {
	// EnrichWithExternalIDs fills ArtistMBID/AlbumMBID where it can.
	// Items that cannot be resolved are returned unchanged; the error is
	// reserved for total failures such as a cancelled context.
	EnrichWithExternalIDs(ctx context.Context, items []models.Recommendation) ([]models.Recommendation, error)
}

// Noop passes items through untouched, for configurations that skip
// identifier resolution entirely.
type Noop struct{}

// EnrichWithExternalIDs returns the batch unchanged.
func (Noop) EnrichWithExternalIDs(_ context.Context, items []models.Recommendation) ([]models.Recommendation, error) {
	return items, nil
}

// Strict wraps an enricher and drops items the lookup could not resolve,
// for installations that refuse to pass name-only items downstream.
type Strict struct {
	Inner Enricher
}

// EnrichWithExternalIDs enriches via the inner resolver and keeps only
// items that ended up with an identifier matching their shape.
func (s Strict) EnrichWithExternalIDs(ctx context.Context, items []models.Recommendation) ([]models.Recommendation, error) {
	enriched, err := s.Inner.EnrichWithExternalIDs(ctx, items)
	if err != nil {
		return nil, err
	}
	kept := enriched[:0]
	for _, item := range enriched {
		if item.HasMBID() {
			kept = append(kept, item)
		}
	}
	return kept, nil
}
