// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package provider

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/resonarr/resonarr/internal/models"
)

// HealthState is the monitor's verdict for one provider.
type HealthState int

const (
	// Healthy providers are attempted normally.
	Healthy HealthState = iota
	// Degraded providers are attempted but logged as suspect.
	Degraded
	// Unhealthy providers are skipped without being attempted.
	Unhealthy
)

// String returns a human-readable name for the health state.
func (s HealthState) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Health thresholds.
const (
	minHealthSamples     = 5
	unhealthySuccessRate = 0.5
	degradedSuccessRate  = 0.8
	failureRecencyWindow = 5 * time.Minute
	breakerFailureTrip   = 5
	breakerOpenTimeout   = time.Minute
)

// HealthRecord holds per-provider rolling counters. Average latency uses
// the incremental running-average formula so no sample history is kept.
type HealthRecord struct {
	Total        int64     `json:"total"`
	Successes    int64     `json:"successes"`
	Failures     int64     `json:"failures"`
	AvgLatencyMS float64   `json:"avg_latency_ms"`
	LastFailure  time.Time `json:"last_failure,omitzero"`
	LastError    string    `json:"last_error,omitempty"`
}

// SuccessRate returns the rolling success fraction.
func (r HealthRecord) SuccessRate() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Successes) / float64(r.Total)
}

// HealthMonitor tracks rolling success/failure/latency per provider and
// wraps provider calls in a circuit breaker. Safe for concurrent use.
type HealthMonitor struct {
	mu       sync.Mutex
	records  map[string]*HealthRecord
	breakers map[string]*gobreaker.CircuitBreaker[[]models.Recommendation]
	logger   zerolog.Logger
	now      func() time.Time
}

// NewHealthMonitor creates an empty monitor.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHealthMonitor(logger zerolog.Logger) *HealthMonitor {
	return &HealthMonitor{
		records:  make(map[string]*HealthRecord),
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]models.Recommendation]),
		logger:   logger.With().Str("component", "health").Logger(),
		now:      time.Now,
	}
}

// RecordSuccess updates the rolling counters after a successful call.
func (m *HealthMonitor) RecordSuccess(name string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(name)
	r.Total++
	r.Successes++
	// newAvg = (oldAvg*(n-1) + sample) / n
	r.AvgLatencyMS = (r.AvgLatencyMS*float64(r.Total-1) + float64(latency.Milliseconds())) / float64(r.Total)
}

// RecordFailure updates the rolling counters after a failed call.
func (m *HealthMonitor) RecordFailure(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.record(name)
	r.Total++
	r.Failures++
	r.LastFailure = m.now()
	r.LastError = reason
}

// Check returns the monitor's verdict for a provider. Providers without
// enough samples are considered healthy.
func (m *HealthMonitor) Check(name string) HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[name]; ok && cb.State() == gobreaker.StateOpen {
		return Unhealthy
	}

	r, ok := m.records[name]
	if !ok || r.Total < minHealthSamples {
		return Healthy
	}

	rate := r.SuccessRate()
	recentFailure := m.now().Sub(r.LastFailure) < failureRecencyWindow
	switch {
	case rate < unhealthySuccessRate && recentFailure:
		return Unhealthy
	case rate < degradedSuccessRate:
		return Degraded
	default:
		return Healthy
	}
}

// Execute runs one provider call through the breaker and records the
// outcome. Latency is measured around the call itself.
func (m *HealthMonitor) Execute(name string, fn func() ([]models.Recommendation, error)) ([]models.Recommendation, error) {
	cb := m.breaker(name)

	start := m.now()
	items, err := cb.Execute(fn)
	if err != nil {
		m.RecordFailure(name, err.Error())
		return nil, err
	}
	m.RecordSuccess(name, m.now().Sub(start))
	return items, nil
}

// Snapshot returns a copy of all health records for the action surface.
func (m *HealthMonitor) Snapshot() map[string]HealthRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]HealthRecord, len(m.records))
	for name, r := range m.records {
		out[name] = *r
	}
	return out
}

// record returns the mutable record for a provider. Callers hold mu.
func (m *HealthMonitor) record(name string) *HealthRecord {
	r, ok := m.records[name]
	if !ok {
		r = &HealthRecord{}
		m.records[name] = r
	}
	return r
}

// breaker lazily creates the per-provider circuit breaker.
func (m *HealthMonitor) breaker(name string) *gobreaker.CircuitBreaker[[]models.Recommendation] {
	m.mu.Lock()
	defer m.mu.Unlock()

	cb, ok := m.breakers[name]
	if !ok {
		settings := gobreaker.Settings{
			Name:    name,
			Timeout: breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailureTrip
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				m.logger.Warn().
					Str("provider", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		}
		cb = gobreaker.NewCircuitBreaker[[]models.Recommendation](settings)
		m.breakers[name] = cb
	}
	return cb
}
