// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/prompt"
	"github.com/resonarr/resonarr/internal/provider"
	"github.com/resonarr/resonarr/internal/validation"
)

// stubBackend is a scriptable provider: fn receives the 1-based call
// number and returns that call's batch.
type stubBackend struct {
	name  string
	local bool
	delay time.Duration
	calls atomic.Int32
	fn    func(call int) ([]models.Recommendation, error)
}

func (s *stubBackend) Name() string  { return s.name }
func (s *stubBackend) IsLocal() bool { return s.local }

func (s *stubBackend) GetRecommendations(ctx context.Context, _ string) ([]models.Recommendation, error) {
	call := int(s.calls.Add(1))
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.fn(call)
}

func (s *stubBackend) TestConnection(context.Context) error { return nil }

// stubFactory hands out a fixed backend.
type stubFactory struct {
	backend     provider.Provider
	unavailable bool
}

func (f *stubFactory) CreateProvider(context.Context, provider.Config) provider.CreationResult {
	if f.unavailable {
		return provider.NotAvailable("no credentials")
	}
	return provider.Created(f.backend)
}

// stubLibrary serves a fixed profile and duplicate index.
type stubLibrary struct {
	profile *models.LibraryProfile
	index   *validation.LibraryIndex
	indexed atomic.Int32
}

func (s *stubLibrary) Analyze(context.Context) *models.LibraryProfile { return s.profile }

func (s *stubLibrary) BuildIndex(context.Context) (*validation.LibraryIndex, error) {
	s.indexed.Add(1)
	return s.index, nil
}

// fakeCache is an in-memory ResultCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]models.Recommendation
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]models.Recommendation)}
}

func (c *fakeCache) TryGet(fp string) ([]models.Recommendation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.entries[fp]
	return items, ok
}

func (c *fakeCache) Set(fp string, items []models.Recommendation, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fp] = items
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(fp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fp)
	return nil
}

// stubReviews serves a fixed seed and never set.
type stubReviews struct {
	seed  []models.Recommendation
	never map[string]struct{}
}

func (s *stubReviews) DrainAccepted() ([]models.Recommendation, error) {
	drained := s.seed
	s.seed = nil
	return drained, nil
}

func (s *stubReviews) NeverKeys() (map[string]struct{}, error) { return s.never, nil }

type fixture struct {
	orch    *Orchestrator
	backend *stubBackend
	library *stubLibrary
	cache   *fakeCache
	reviews *stubReviews
}

func newFixture(t *testing.T, backend *stubBackend, settings Settings) *fixture {
	t.Helper()
	if settings.Mode == "" {
		settings.Mode = models.ModeSimilar
	}
	if settings.CacheTTL == 0 {
		settings.CacheTTL = time.Hour
	}

	lib := &stubLibrary{
		profile: &models.LibraryProfile{
			TotalArtists: 10,
			TotalAlbums:  30,
			TopArtists:   []string{"Owned Artist"},
			Metadata:     map[string]any{},
		},
		index: validation.NewLibraryIndex(
			[]string{"Owned Artist"},
			[][2]string{{"Owned Artist", "Owned Album"}},
		),
	}
	resultCache := newFakeCache()
	reviews := &stubReviews{}

	orch := New(
		lib,
		&stubFactory{backend: backend},
		provider.NewHealthMonitor(zerolog.Nop()),
		prompt.NewBuilder(),
		validation.NewValidator(nil, zerolog.Nop()),
		nil,
		validation.NewSafetyGate(settings.MinConfidence, settings.RequireMBID, nil, zerolog.Nop()),
		resultCache,
		reviews,
		provider.Config{Selector: provider.SelectorOpenAI, APIKey: "k", Model: "m"},
		settings,
		zerolog.Nop(),
	)
	return &fixture{orch: orch, backend: backend, library: lib, cache: resultCache, reviews: reviews}
}

func rec(artist, album string, confidence float64) models.Recommendation {
	return models.Recommendation{Artist: artist, Album: album, Confidence: confidence}
}

func TestFetchConvergesInOnePass(t *testing.T) {
	backend := &stubBackend{name: "openai:m", fn: func(call int) ([]models.Recommendation, error) {
		var items []models.Recommendation
		for i := 0; i < 10; i++ {
			items = append(items, rec(fmt.Sprintf("artist-%d", i), fmt.Sprintf("album-%d", i), 0.9))
		}
		return items, nil
	}}
	f := newFixture(t, backend, Settings{Count: 5, MaxAttempts: 4})

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Outcome != OutcomeConverged {
		t.Errorf("outcome = %s, want converged", result.Outcome)
	}
	if len(result.Recommendations) != 5 {
		t.Errorf("items = %d, want exactly target", len(result.Recommendations))
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
	if f.cache.sets != 1 {
		t.Errorf("cache writes = %d, want 1", f.cache.sets)
	}
}

// Top-up convergence property: a backend yielding k new unique items per
// call must produce min(target, k*attempts) within the retry budget.
func TestTopUpConvergenceProperty(t *testing.T) {
	tests := []struct {
		name        string
		perCall     int
		target      int
		maxAttempts int
		want        int
	}{
		{"converges within budget", 8, 20, 4, 20},
		{"budget exhausted short", 3, 20, 4, 12},
		{"single pass surplus", 30, 20, 4, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := 0
			backend := &stubBackend{name: "openai:m", fn: func(int) ([]models.Recommendation, error) {
				var items []models.Recommendation
				for i := 0; i < tt.perCall; i++ {
					items = append(items, rec(fmt.Sprintf("artist-%d", next), fmt.Sprintf("album-%d", next), 0.9))
					next++
				}
				return items, nil
			}}
			f := newFixture(t, backend, Settings{Count: tt.target, MaxAttempts: tt.maxAttempts})

			result, err := f.orch.Fetch(context.Background(), FetchRequest{})
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if len(result.Recommendations) != tt.want {
				t.Errorf("items = %d, want %d", len(result.Recommendations), tt.want)
			}
			if int(backend.calls.Load()) > tt.maxAttempts {
				t.Errorf("provider calls = %d, budget %d exceeded", backend.calls.Load(), tt.maxAttempts)
			}
		})
	}
}

// Exact convergence scenario: target 10, first call yields 12 raw of
// which 3 fail validation and 1 duplicates the library, leaving 8; one
// top-up for deficit 2 completes the set.
func TestFetchExactConvergenceScenario(t *testing.T) {
	backend := &stubBackend{name: "openai:m", fn: func(call int) ([]models.Recommendation, error) {
		if call == 1 {
			items := []models.Recommendation{
				rec("", "no artist", 0.9),             // fails validation
				rec("Unknown", "", 0.9),               // fails validation
				rec("Various Artists", "Hits", 0.9),   // fails validation
				rec("Owned Artist", "Owned Album", 1), // library duplicate
			}
			for i := 0; i < 8; i++ {
				items = append(items, rec(fmt.Sprintf("fresh-%d", i), fmt.Sprintf("album-%d", i), 0.9))
			}
			return items, nil
		}
		return []models.Recommendation{
			rec("topup-1", "album", 0.8),
			rec("topup-2", "album", 0.8),
			rec("fresh-0", "album-0", 0.8), // already accepted, dropped
		}, nil
	}}
	f := newFixture(t, backend, Settings{Count: 10, MaxAttempts: 4})

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Outcome != OutcomeConverged {
		t.Errorf("outcome = %s, want converged", result.Outcome)
	}
	if len(result.Recommendations) != 10 {
		t.Errorf("items = %d, want exactly 10", len(result.Recommendations))
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
}

// Concurrency guard: identical concurrent fetches coalesce into one
// pipeline run with a single provider invocation.
func TestConcurrentFetchesCoalesce(t *testing.T) {
	backend := &stubBackend{name: "openai:m", delay: 50 * time.Millisecond, fn: func(int) ([]models.Recommendation, error) {
		var items []models.Recommendation
		for i := 0; i < 10; i++ {
			items = append(items, rec(fmt.Sprintf("artist-%d", i), fmt.Sprintf("album-%d", i), 0.9))
		}
		return items, nil
	}}
	f := newFixture(t, backend, Settings{Count: 5, MaxAttempts: 4})

	var wg sync.WaitGroup
	results := make([]*FetchResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.orch.Fetch(context.Background(), FetchRequest{})
			if err != nil {
				t.Errorf("fetch %d: %v", i, err)
				return
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	if got := backend.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
	if results[0] == nil || results[1] == nil {
		t.Fatal("missing results")
	}
	if len(results[0].Recommendations) != len(results[1].Recommendations) {
		t.Errorf("callers saw different results: %d vs %d",
			len(results[0].Recommendations), len(results[1].Recommendations))
	}
}

func TestFetchServesFromCache(t *testing.T) {
	backend := &stubBackend{name: "openai:m", fn: func(int) ([]models.Recommendation, error) {
		return []models.Recommendation{rec("artist", "album", 0.9)}, nil
	}}
	f := newFixture(t, backend, Settings{Count: 1, MaxAttempts: 2})

	first, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache {
		t.Error("first fetch should miss")
	}

	second, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache || second.Outcome != OutcomeCached {
		t.Errorf("second fetch = %+v, want cache hit", second)
	}
	if backend.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", backend.calls.Load())
	}

	// ForceRefresh bypasses and replaces the entry.
	third, err := f.orch.Fetch(context.Background(), FetchRequest{ForceRefresh: true})
	if err != nil {
		t.Fatalf("refresh fetch: %v", err)
	}
	if third.FromCache {
		t.Error("refresh fetch must not be served from cache")
	}
	if backend.calls.Load() != 2 {
		t.Errorf("provider calls = %d, want 2 after refresh", backend.calls.Load())
	}
}

func TestFetchUnavailableProviderIsEmptyNotError(t *testing.T) {
	f := newFixture(t, &stubBackend{name: "unused"}, Settings{Count: 5, MaxAttempts: 2})
	f.orch.providers = &stubFactory{unavailable: true}

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("unavailability must not be an error: %v", err)
	}
	if result.Outcome != OutcomeUnavailable || len(result.Recommendations) != 0 {
		t.Errorf("result = %+v, want empty unavailable", result)
	}
}

func TestFetchSkipsUnhealthyProvider(t *testing.T) {
	backend := &stubBackend{name: "openai:m", fn: func(int) ([]models.Recommendation, error) {
		return []models.Recommendation{rec("artist", "album", 0.9)}, nil
	}}
	f := newFixture(t, backend, Settings{Count: 5, MaxAttempts: 4})

	// Two successes against three recent failures: 40% success rate with
	// a failure inside the recency window is an unhealthy verdict.
	f.orch.health.RecordSuccess("openai:m", 10*time.Millisecond)
	f.orch.health.RecordSuccess("openai:m", 10*time.Millisecond)
	f.orch.health.RecordFailure("openai:m", "timeout")
	f.orch.health.RecordFailure("openai:m", "timeout")
	f.orch.health.RecordFailure("openai:m", "timeout")

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("unhealthy provider must degrade, not error: %v", err)
	}
	if result.Outcome != OutcomeUnavailable || len(result.Recommendations) != 0 {
		t.Errorf("result = %+v, want empty unavailable", result)
	}
	if got := backend.calls.Load(); got != 0 {
		t.Errorf("provider attempted %d times while unhealthy, want 0", got)
	}
}

func TestFetchAttemptsDegradedProvider(t *testing.T) {
	backend := &stubBackend{name: "openai:m", fn: func(int) ([]models.Recommendation, error) {
		var items []models.Recommendation
		for i := 0; i < 10; i++ {
			items = append(items, rec(fmt.Sprintf("artist-%d", i), fmt.Sprintf("album-%d", i), 0.9))
		}
		return items, nil
	}}
	f := newFixture(t, backend, Settings{Count: 5, MaxAttempts: 4})

	// Success rate below the degraded threshold but above unhealthy:
	// degraded providers are still attempted.
	f.orch.health.RecordSuccess("openai:m", 10*time.Millisecond)
	f.orch.health.RecordSuccess("openai:m", 10*time.Millisecond)
	f.orch.health.RecordSuccess("openai:m", 10*time.Millisecond)
	f.orch.health.RecordFailure("openai:m", "timeout")
	f.orch.health.RecordFailure("openai:m", "timeout")
	f.orch.health.RecordFailure("openai:m", "timeout")
	f.orch.health.RecordSuccess("openai:m", 10*time.Millisecond)

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Outcome != OutcomeConverged {
		t.Errorf("outcome = %s, want converged", result.Outcome)
	}
	if got := backend.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

// countingEnricher records how many items reach the enrichment stage.
type countingEnricher struct {
	seen atomic.Int32
}

func (e *countingEnricher) EnrichWithExternalIDs(_ context.Context, items []models.Recommendation) ([]models.Recommendation, error) {
	e.seen.Add(int32(len(items)))
	return items, nil
}

func TestInBatchDuplicatesCollapseBeforeEnrichment(t *testing.T) {
	backend := &stubBackend{name: "openai:m", fn: func(int) ([]models.Recommendation, error) {
		return []models.Recommendation{
			rec("artist-a", "album", 0.9),
			rec("artist-a", "album", 0.9), // repeated in the same response
			rec("artist-b", "album", 0.9),
		}, nil
	}}
	f := newFixture(t, backend, Settings{Count: 2, MaxAttempts: 1})
	enricher := &countingEnricher{}
	f.orch.enricher = enricher

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Recommendations) != 2 {
		t.Errorf("items = %d, want 2", len(result.Recommendations))
	}
	if got := enricher.seen.Load(); got != 2 {
		t.Errorf("items enriched = %d, want duplicate collapsed to 2", got)
	}
}

func TestFetchStopsEarlyOnExhaustedSuggestionSpace(t *testing.T) {
	// The backend repeats the same two items forever; after the first
	// pass nothing new arrives and the loop must stop well before the
	// retry budget.
	backend := &stubBackend{name: "openai:m", fn: func(int) ([]models.Recommendation, error) {
		return []models.Recommendation{
			rec("same-1", "album", 0.9),
			rec("same-2", "album", 0.9),
		}, nil
	}}
	f := newFixture(t, backend, Settings{Count: 20, MaxAttempts: 8})

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Outcome != OutcomeExhausted {
		t.Errorf("outcome = %s, want exhausted", result.Outcome)
	}
	if len(result.Recommendations) != 2 {
		t.Errorf("items = %d, want best-effort 2", len(result.Recommendations))
	}
	if backend.calls.Load() >= 8 {
		t.Errorf("provider calls = %d, want early stop", backend.calls.Load())
	}
}

func TestFetchFailedProviderYieldsEmptyResult(t *testing.T) {
	backend := &stubBackend{name: "openai:m", fn: func(int) ([]models.Recommendation, error) {
		return nil, errors.New("boom")
	}}
	f := newFixture(t, backend, Settings{Count: 5, MaxAttempts: 4})

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("provider failure must degrade, not error: %v", err)
	}
	if len(result.Recommendations) != 0 || result.Outcome != OutcomeExhausted {
		t.Errorf("result = %+v, want empty exhausted", result)
	}

	// The failure is visible in the health snapshot.
	health := f.orch.ProviderHealth()["openai:m"]
	if health.Failures == 0 {
		t.Error("failure not recorded in health monitor")
	}
}

func TestFetchMergesAcceptedReviewItemsAndHonorsNeverList(t *testing.T) {
	backend := &stubBackend{name: "openai:m", fn: func(int) ([]models.Recommendation, error) {
		return []models.Recommendation{
			rec("banned", "album", 0.9),
			rec("fresh", "album", 0.9),
		}, nil
	}}
	f := newFixture(t, backend, Settings{Count: 3, MaxAttempts: 1})
	f.reviews.seed = []models.Recommendation{rec("from review", "album", 0.7)}
	f.reviews.never = map[string]struct{}{"banned|album": {}}

	result, err := f.orch.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	got := make(map[string]bool)
	for _, item := range result.Recommendations {
		got[item.Artist] = true
	}
	if !got["from review"] {
		t.Error("accepted review item not merged into result")
	}
	if got["banned"] {
		t.Error("never-listed item present in result")
	}
	if !got["fresh"] {
		t.Error("fresh item missing")
	}
}

func TestFetchCancellationReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &stubBackend{name: "openai:m", delay: 200 * time.Millisecond, fn: func(int) ([]models.Recommendation, error) {
		return []models.Recommendation{rec("artist", "album", 0.9)}, nil
	}}
	f := newFixture(t, backend, Settings{Count: 5, MaxAttempts: 4})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := f.orch.Fetch(ctx, FetchRequest{})
	if err != nil {
		t.Fatalf("cancellation must yield best-effort result: %v", err)
	}
	if result.FromCache {
		t.Error("cancelled run must not report a cache hit")
	}
	// Nothing converged, and the partial result must not be cached.
	if f.cache.sets != 0 {
		t.Errorf("cache writes = %d, want 0 for cancelled run", f.cache.sets)
	}
}
