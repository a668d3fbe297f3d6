// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package validation

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
)

// mockReviewSink records enqueued items and accept marks.
type mockReviewSink struct {
	enqueued []models.Recommendation
	reasons  []string
	accepted []string
	err      error
}

func (m *mockReviewSink) Enqueue(item models.Recommendation, reason string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.enqueued = append(m.enqueued, item)
	m.reasons = append(m.reasons, reason)
	return fmt.Sprintf("rq-%d", len(m.enqueued)), nil
}

func (m *mockReviewSink) MarkAccepted(id string) error {
	m.accepted = append(m.accepted, id)
	return nil
}

func TestSafetyGateConfidenceThreshold(t *testing.T) {
	gate := NewSafetyGate(0.7, false, nil, zerolog.Nop())

	result := gate.Apply([]models.Recommendation{
		{Artist: "Can", Album: "Tago Mago", Confidence: 0.9},
		{Artist: "Neu!", Album: "Neu! 75", Confidence: 0.5},
	}, 10, false)

	if len(result.Accepted) != 1 || len(result.Rejected) != 1 {
		t.Fatalf("accepted=%d rejected=%d, want 1/1", len(result.Accepted), len(result.Rejected))
	}
	if result.RejectReasons[result.Rejected[0].Key()] != ReasonLowConfidence {
		t.Errorf("reason = %v, want low confidence", result.RejectReasons)
	}
	if result.FailOpen {
		t.Error("fail-open should not trigger with accepted items")
	}
}

func TestSafetyGateIdentifierRequirement(t *testing.T) {
	sink := &mockReviewSink{}
	gate := NewSafetyGate(0.5, true, sink, zerolog.Nop())

	result := gate.Apply([]models.Recommendation{
		{Artist: "Can", Album: "Tago Mago", Confidence: 0.9, AlbumMBID: "mbid-1"},
		{Artist: "Cluster", Album: "Zuckerzeit", Confidence: 0.9},
	}, 10, false)

	if len(result.Accepted) != 1 {
		t.Fatalf("accepted = %d, want 1", len(result.Accepted))
	}
	if result.Queued != 1 || len(sink.enqueued) != 1 {
		t.Errorf("queued = %d, sink = %d, want 1/1", result.Queued, len(sink.enqueued))
	}
	if sink.reasons[0] != ReasonMissingMBID {
		t.Errorf("queue reason = %q, want missing identifier", sink.reasons[0])
	}
	// Album mode: no fail-open even though rejects exist.
	if result.FailOpen {
		t.Error("fail-open must not trigger outside artist-only mode")
	}
}

func TestSafetyGateFailOpenPromotion(t *testing.T) {
	sink := &mockReviewSink{}
	gate := NewSafetyGate(0.5, true, sink, zerolog.Nop())

	// All five candidates lack identifiers in artist-only mode.
	items := make([]models.Recommendation, 5)
	for i := range items {
		items[i] = models.Recommendation{Artist: fmt.Sprintf("Artist %d", i), Confidence: 0.9}
	}

	target := 3
	result := gate.Apply(items, target, true)

	if !result.FailOpen {
		t.Fatal("expected fail-open promotion")
	}
	if len(result.Accepted) != target {
		t.Errorf("accepted = %d, want %d (bounded by target)", len(result.Accepted), target)
	}
	if len(result.Rejected) != 2 {
		t.Errorf("rejected = %d, want 2", len(result.Rejected))
	}
	if len(sink.accepted) != target {
		t.Errorf("review queue accept marks = %d, want %d", len(sink.accepted), target)
	}
}

func TestSafetyGateFailOpenPromotesBestConfidenceFirst(t *testing.T) {
	gate := NewSafetyGate(0.5, true, nil, zerolog.Nop())

	result := gate.Apply([]models.Recommendation{
		{Artist: "Middling", Confidence: 0.6},
		{Artist: "Best", Confidence: 0.95},
		{Artist: "Weakest", Confidence: 0.55},
	}, 2, true)

	if !result.FailOpen {
		t.Fatal("expected fail-open promotion")
	}
	if len(result.Accepted) != 2 ||
		result.Accepted[0].Artist != "Best" || result.Accepted[1].Artist != "Middling" {
		t.Errorf("accepted = %v, want Best then Middling", result.Accepted)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Artist != "Weakest" {
		t.Errorf("rejected = %v, want only Weakest", result.Rejected)
	}
}

func TestSafetyGateFailOpenSkipsLowConfidence(t *testing.T) {
	gate := NewSafetyGate(0.7, true, nil, zerolog.Nop())

	result := gate.Apply([]models.Recommendation{
		{Artist: "Low", Confidence: 0.2},
		{Artist: "NameOnly", Confidence: 0.9},
	}, 5, true)

	if !result.FailOpen {
		t.Fatal("expected fail-open promotion")
	}
	// Only the identifier-gated item is promotable; the low-confidence
	// item stays rejected.
	if len(result.Accepted) != 1 || result.Accepted[0].Artist != "NameOnly" {
		t.Errorf("accepted = %v, want only NameOnly", result.Accepted)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Artist != "Low" {
		t.Errorf("rejected = %v, want only Low", result.Rejected)
	}
}

func TestSafetyGateArtistOnlyWithArtistMBID(t *testing.T) {
	gate := NewSafetyGate(0.5, true, nil, zerolog.Nop())

	result := gate.Apply([]models.Recommendation{
		{Artist: "Can", Confidence: 0.9, ArtistMBID: "mbid-a"},
	}, 5, true)

	if len(result.Accepted) != 1 {
		t.Errorf("artist MBID should satisfy the identifier gate in artist-only mode")
	}
	if result.FailOpen {
		t.Error("no promotion needed when strict gating accepts items")
	}
}
