// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package validation

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
)

// ReviewSink receives borderline items the gate routes to human review
// instead of discarding. Implemented by the review queue.
type ReviewSink interface {
	// Enqueue stores a borderline item and returns its queue ID.
	Enqueue(item models.Recommendation, reason string) (string, error)

	// MarkAccepted flips a queued item to accepted, used when fail-open
	// promotion pulls it back into the result set.
	MarkAccepted(id string) error
}

// GateResult is the outcome of one safety-gate pass.
type GateResult struct {
	Accepted []models.Recommendation
	Rejected []models.Recommendation

	// RejectReasons maps a rejected item's Key() to the failing gate.
	RejectReasons map[string]string

	// Queued counts items routed to the review queue.
	Queued int

	// FailOpen is set when promotion relaxed the identifier gate to
	// avoid an empty result.
	FailOpen bool
}

// SafetyGate applies the minimum-confidence and required-identifier gates
// in sequence. Items failing either gate are dropped, or queued for review
// when a sink is attached.
type SafetyGate struct {
	// MinConfidence is the inclusive acceptance threshold.
	MinConfidence float64

	// RequireMBID demands an external identifier appropriate to the
	// item's shape (artist MBID for artist-only items).
	RequireMBID bool

	sink   ReviewSink
	logger zerolog.Logger
}

// NewSafetyGate creates a gate. A nil sink disables review queuing.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSafetyGate(minConfidence float64, requireMBID bool, sink ReviewSink, logger zerolog.Logger) *SafetyGate {
	return &SafetyGate{
		MinConfidence: minConfidence,
		RequireMBID:   requireMBID,
		sink:          sink,
		logger:        logger.With().Str("component", "safetygate").Logger(),
	}
}

// Apply gates a validated batch. In artist-only mode with the identifier
// requirement enabled, a batch where every item fails the identifier gate
// triggers fail-open promotion: up to target name-only items are promoted
// back into the accepted set rather than returning an empty result.
func (g *SafetyGate) Apply(items []models.Recommendation, target int, artistOnly bool) GateResult {
	result := GateResult{RejectReasons: make(map[string]string)}
	queueIDs := make(map[string]string)

	for _, item := range items {
		reason := ""
		switch {
		case item.Confidence < g.MinConfidence:
			reason = ReasonLowConfidence
		case g.RequireMBID && !item.HasMBID():
			reason = ReasonMissingMBID
		}

		if reason == "" {
			result.Accepted = append(result.Accepted, item)
			continue
		}

		result.Rejected = append(result.Rejected, item)
		result.RejectReasons[item.Key()] = reason
		if g.sink != nil {
			id, err := g.sink.Enqueue(item, reason)
			if err != nil {
				g.logger.Warn().Err(err).Str("item", item.String()).Msg("review enqueue failed")
				continue
			}
			queueIDs[item.Key()] = id
			result.Queued++
		}
	}

	if artistOnly && g.RequireMBID && len(result.Accepted) == 0 {
		g.promoteNameOnly(&result, target, queueIDs)
	}

	return result
}

// promoteNameOnly performs the bounded fail-open promotion: identifier-gate
// rejects are pulled back into the accepted set, best confidence first up
// to the requested count, and marked accepted in the review queue.
func (g *SafetyGate) promoteNameOnly(result *GateResult, target int, queueIDs map[string]string) {
	sort.SliceStable(result.Rejected, func(i, j int) bool {
		return result.Rejected[i].Confidence > result.Rejected[j].Confidence
	})

	promoted := 0
	remaining := result.Rejected[:0]

	for _, item := range result.Rejected {
		if promoted < target && result.RejectReasons[item.Key()] == ReasonMissingMBID {
			result.Accepted = append(result.Accepted, item)
			delete(result.RejectReasons, item.Key())
			if id, ok := queueIDs[item.Key()]; ok && g.sink != nil {
				if err := g.sink.MarkAccepted(id); err != nil {
					g.logger.Warn().Err(err).Str("id", id).Msg("review accept mark failed")
				}
			}
			promoted++
			continue
		}
		remaining = append(remaining, item)
	}
	result.Rejected = remaining

	if promoted > 0 {
		result.FailOpen = true
		g.logger.Info().
			Int("promoted", promoted).
			Msg("identifier gate filtered all items, promoted name-only candidates")
	}
}
