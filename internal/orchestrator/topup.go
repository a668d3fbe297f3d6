// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package orchestrator

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/metrics"
	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/prompt"
	"github.com/resonarr/resonarr/internal/provider"
	"github.com/resonarr/resonarr/internal/validation"
)

// topUpState is one node of the convergence state machine.
type topUpState int

const (
	stateInitial topUpState = iota
	stateOversample
	stateValidate
	stateShortfallCheck
	stateTopUp
	stateConverged
	stateExhausted
)

const defaultMaxAttempts = 4

// oversampleFactors inflate the requested count to compensate for
// expected attrition in validation, gating and dedup. The configured
// backfill aggressiveness picks the starting factor; each top-up pass
// escalates one step. Tuned defaults, not load-bearing constants.
var oversampleFactors = [...]float64{1.0, 1.3, 1.6, 2.0}

// Per-provider-class request ceilings. Local backends tolerate larger
// batches than metered remote APIs.
const (
	remoteRequestCap = 50
	localRequestCap  = 100
)

// lowStopPatience is how many consecutive zero-new-item passes are
// tolerated before the loop gives up on an exhausted suggestion space.
const lowStopPatience = 2

// topUpOutcome is the loop's terminal report.
type topUpOutcome struct {
	accepted []models.Recommendation
	state    string
	attempts int
	failOpen bool
}

// topUpLoop is one run of the convergence state machine. Single-use,
// confined to one goroutine.
type topUpLoop struct {
	backend   provider.Provider
	health    *provider.HealthMonitor
	prompts   *prompt.Builder
	validator *validation.Validator
	enricher  Enricher
	gate      *validation.SafetyGate
	index     *validation.LibraryIndex
	neverKeys map[string]struct{}
	profile   *models.LibraryProfile
	settings  Settings
	logger    zerolog.Logger

	accepted     []models.Recommendation
	rejectedPool []models.Recommendation
	seen         map[string]struct{}
	attempts     int
	staleStreak  int
	failOpen     bool
}

// run drives the state machine to a terminal state. The accepted list is
// trimmed to exactly the target on convergence, best-effort otherwise.
func (l *topUpLoop) run(ctx context.Context, seed []models.Recommendation) topUpOutcome {
	l.seen = make(map[string]struct{})
	for _, item := range seed {
		if l.admit(item) {
			l.accepted = append(l.accepted, item)
		}
	}

	state := stateInitial
	requestSize := 0

	for {
		if ctx.Err() != nil {
			return l.finish(stateExhausted)
		}

		switch state {
		case stateInitial:
			state = stateOversample

		case stateOversample:
			requestSize = l.oversampleSize(l.settings.Count)
			state = stateValidate

		case stateValidate:
			added := l.generateAndFilter(ctx, requestSize)
			if added == 0 {
				l.staleStreak++
			} else {
				l.staleStreak = 0
			}
			state = stateShortfallCheck

		case stateShortfallCheck:
			switch {
			case len(l.accepted) >= l.settings.Count:
				state = stateConverged
			case l.attempts >= l.settings.MaxAttempts:
				state = stateExhausted
			case l.staleStreak >= lowStopPatience:
				l.logger.Debug().
					Int("accepted", len(l.accepted)).
					Msg("suggestion space exhausted, stopping early")
				state = stateExhausted
			default:
				state = stateTopUp
			}

		case stateTopUp:
			deficit := l.settings.Count - len(l.accepted)
			requestSize = l.oversampleSize(deficit)
			state = stateValidate

		case stateConverged:
			return l.finish(stateConverged)

		case stateExhausted:
			l.promoteFromRejectedPool()
			return l.finish(stateExhausted)
		}
	}
}

// generateAndFilter issues one provider call and runs the filter chain in
// its fixed order: validation, in-batch dedup, enrichment, safety gate,
// library-duplicate filter, then admission against everything accepted so
// far. Returns the number of newly accepted items.
func (l *topUpLoop) generateAndFilter(ctx context.Context, requestSize int) int {
	l.attempts++

	rendered := l.prompts.Build(prompt.Request{
		Profile:    l.profile,
		Mode:       l.settings.Mode,
		Count:      requestSize,
		ArtistOnly: l.settings.ArtistOnly,
		Exclude:    exclusionList(l.profile, l.accepted, l.neverKeys),
	})

	start := time.Now()
	raw, err := l.health.Execute(l.backend.Name(), func() ([]models.Recommendation, error) {
		return l.backend.GetRecommendations(ctx, rendered)
	})
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(l.backend.Name(), "failure").Inc()
		l.logger.Warn().Err(err).Int("attempt", l.attempts).Msg("provider call failed")
		return 0
	}
	metrics.ProviderCalls.WithLabelValues(l.backend.Name(), "success").Inc()
	metrics.ProviderLatency.WithLabelValues(l.backend.Name()).Observe(time.Since(start).Seconds())

	batch := l.validator.ValidateBatch(raw, l.settings.ArtistOnly)
	for reason, n := range batch.Counts {
		metrics.ItemsFiltered.WithLabelValues(reason).Add(float64(n))
	}

	// Repeats within one response are collapsed before enrichment so the
	// same lookup is never paid twice.
	valid, dupes := validation.DedupBatch(batch.Valid)
	if dupes > 0 {
		metrics.ItemsFiltered.WithLabelValues(validation.ReasonBatchDuplicate).Add(float64(dupes))
	}

	enriched := valid
	if l.enricher != nil {
		enriched, err = l.enricher.EnrichWithExternalIDs(ctx, valid)
		if err != nil {
			l.logger.Warn().Err(err).Msg("enrichment aborted, continuing with unenriched batch")
			enriched = valid
		}
	}

	deficit := l.settings.Count - len(l.accepted)
	gated := l.gate.Apply(enriched, deficit, l.settings.ArtistOnly)
	l.failOpen = l.failOpen || gated.FailOpen
	for _, item := range gated.Rejected {
		if gated.RejectReasons[item.Key()] == validation.ReasonMissingMBID {
			l.rejectedPool = append(l.rejectedPool, item)
		}
	}

	kept, dropped := validation.FilterLibraryDuplicates(gated.Accepted, l.index)
	if len(dropped) > 0 {
		metrics.ItemsFiltered.WithLabelValues(validation.ReasonLibraryDupe).Add(float64(len(dropped)))
	}

	added := 0
	for _, item := range kept {
		if l.admit(item) {
			l.accepted = append(l.accepted, item)
			added++
		}
	}
	l.logger.Debug().
		Int("attempt", l.attempts).
		Int("raw", len(raw)).
		Int("added", added).
		Int("accepted", len(l.accepted)).
		Msg("top-up pass complete")
	return added
}

// admit records an item's identity, rejecting batch duplicates and
// never-listed suggestions.
func (l *topUpLoop) admit(item models.Recommendation) bool {
	key := item.Key()
	if _, dup := l.seen[key]; dup {
		metrics.ItemsFiltered.WithLabelValues(validation.ReasonBatchDuplicate).Inc()
		return false
	}
	if _, banned := l.neverKeys[key]; banned {
		return false
	}
	l.seen[key] = struct{}{}
	return true
}

// promoteFromRejectedPool is the terminal fail-open step: with the exact
// target guaranteed and the budget spent, name-only rejects close the
// remaining gap, best confidence first.
func (l *topUpLoop) promoteFromRejectedPool() {
	if !l.settings.GuaranteeExact {
		return
	}
	sort.SliceStable(l.rejectedPool, func(i, j int) bool {
		return l.rejectedPool[i].Confidence > l.rejectedPool[j].Confidence
	})
	for _, item := range l.rejectedPool {
		if len(l.accepted) >= l.settings.Count {
			return
		}
		if l.index.Contains(item) || !l.admit(item) {
			continue
		}
		l.accepted = append(l.accepted, item)
		l.failOpen = true
	}
}

func (l *topUpLoop) finish(state topUpState) topUpOutcome {
	if len(l.accepted) > l.settings.Count {
		l.accepted = l.accepted[:l.settings.Count]
	}
	name := OutcomeExhausted
	if state == stateConverged {
		name = OutcomeConverged
	}
	return topUpOutcome{
		accepted: l.accepted,
		state:    name,
		attempts: l.attempts,
		failOpen: l.failOpen,
	}
}

// oversampleSize inflates a wanted count by the aggressiveness-selected
// factor, clamped by the provider-class ceiling and twice the target.
func (l *topUpLoop) oversampleSize(wanted int) int {
	idx := l.settings.BackfillAggressiveness
	// Later passes escalate one factor step per attempt already spent.
	idx += l.attempts
	if idx >= len(oversampleFactors) {
		idx = len(oversampleFactors) - 1
	}
	if idx < 0 {
		idx = 0
	}

	size := int(math.Ceil(float64(wanted) * oversampleFactors[idx]))
	if size < wanted {
		size = wanted
	}
	if limit := 2 * l.settings.Count; size > limit {
		size = limit
	}

	ceiling := remoteRequestCap
	if l.backend.IsLocal() {
		ceiling = localRequestCap
	}
	if size > ceiling {
		size = ceiling
	}
	return size
}
