// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package validation

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "plain array",
			raw:  `[{"artist": "Can", "album": "Future Days", "confidence": 0.9}]`,
			want: 1,
		},
		{
			name: "markdown fenced",
			raw:  "```json\n[{\"artist\": \"Neu!\", \"confidence\": 0.8}]\n```",
			want: 1,
		},
		{
			name: "prose around array",
			raw:  "Here are my picks:\n[{\"artist\": \"Faust\"}]\nEnjoy!",
			want: 1,
		},
		{
			name:    "no array",
			raw:     "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "schema violation",
			raw:     `[{"album": "No Artist Here"}]`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     "[not json at all]",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParsePayload(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", items)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != tt.want {
				t.Errorf("parsed %d items, want %d", len(items), tt.want)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	v := NewValidator([]string{`(?i)^forbidden`}, zerolog.Nop())

	items := []models.Recommendation{
		{Artist: "Can", Album: "Tago Mago", Confidence: 0.9},
		{Artist: "", Album: "Orphan Album", Confidence: 0.9},
		{Artist: "Neu!", Confidence: 0.8}, // missing album
		{Artist: "Various Artists", Album: "Comp", Confidence: 0.9},
		{Artist: "Forbidden Band", Album: "X", Confidence: 0.9},
		{Artist: "Faust", Album: "IV", Confidence: 1.7}, // clamped
	}

	result := v.ValidateBatch(items, false)

	if len(result.Valid) != 2 {
		t.Fatalf("valid = %d (%v), want 2", len(result.Valid), result.Valid)
	}
	if result.Valid[1].Confidence != 1.0 {
		t.Errorf("confidence not clamped: %v", result.Valid[1].Confidence)
	}
	if result.Counts[ReasonMissingArtist] != 1 ||
		result.Counts[ReasonMissingAlbum] != 1 ||
		result.Counts[ReasonRejectPattern] != 2 {
		t.Errorf("unexpected filter counts: %v", result.Counts)
	}
}

func TestValidateBatchArtistOnlyClearsAlbums(t *testing.T) {
	v := NewValidator(nil, zerolog.Nop())

	result := v.ValidateBatch([]models.Recommendation{
		{Artist: "Can", Album: "Tago Mago", Year: 1971, Confidence: 0.9},
	}, true)

	if len(result.Valid) != 1 {
		t.Fatalf("valid = %d, want 1", len(result.Valid))
	}
	got := result.Valid[0]
	if got.Album != "" || got.Year != 0 {
		t.Errorf("album fields not cleared in artist-only mode: %+v", got)
	}
}

func TestValidateBatchInvalidExtraPattern(t *testing.T) {
	// An invalid pattern must be skipped, not break construction.
	v := NewValidator([]string{"("}, zerolog.Nop())
	result := v.ValidateBatch([]models.Recommendation{{Artist: "Can", Album: "Ege Bamyasi"}}, false)
	if len(result.Valid) != 1 {
		t.Errorf("valid = %d, want 1", len(result.Valid))
	}
}

func TestDedupBatch(t *testing.T) {
	items := []models.Recommendation{
		{Artist: "Can", Album: "Tago Mago"},
		{Artist: "can ", Album: "tago mago"}, // same identity
		{Artist: "Can", Album: "Ege Bamyasi"},
	}
	kept, dropped := DedupBatch(items)
	if len(kept) != 2 || dropped != 1 {
		t.Errorf("kept=%d dropped=%d, want 2/1", len(kept), dropped)
	}
	if kept[0].Album != "Tago Mago" {
		t.Errorf("dedup should keep first occurrence, got %v", kept[0])
	}
}

func TestLibraryIndex(t *testing.T) {
	idx := NewLibraryIndex(
		[]string{"Can"},
		[][2]string{{"Can", "Tago Mago"}},
	)

	if !idx.Contains(models.Recommendation{Artist: "can"}) {
		t.Error("artist-only duplicate not detected")
	}
	if !idx.Contains(models.Recommendation{Artist: "CAN", Album: "Tago Mago"}) {
		t.Error("album duplicate not detected")
	}
	// A new album by an owned artist is not a duplicate.
	if idx.Contains(models.Recommendation{Artist: "Can", Album: "Future Days"}) {
		t.Error("new album by owned artist wrongly flagged")
	}

	kept, dropped := FilterLibraryDuplicates([]models.Recommendation{
		{Artist: "Can", Album: "Tago Mago"},
		{Artist: "Cluster", Album: "Zuckerzeit"},
	}, idx)
	if len(kept) != 1 || len(dropped) != 1 {
		t.Errorf("kept=%d dropped=%d, want 1/1", len(kept), len(dropped))
	}
}

func TestSanitizePayloadEdgeCases(t *testing.T) {
	if got := sanitizePayload("```json\n[]\n```"); got != "[]" {
		t.Errorf("fenced empty array = %q", got)
	}
	if got := sanitizePayload("nothing here"); got != "" {
		t.Errorf("no array should yield empty, got %q", got)
	}
	if !strings.HasPrefix(sanitizePayload(`x ["a"] y`), "[") {
		t.Error("prose stripping failed")
	}
}
