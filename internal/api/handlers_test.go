// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/orchestrator"
	"github.com/resonarr/resonarr/internal/provider"
	"github.com/resonarr/resonarr/internal/reviewqueue"
)

type mockFetcher struct {
	lastReq orchestrator.FetchRequest
	result  *orchestrator.FetchResult
	testErr error
}

func (m *mockFetcher) Fetch(_ context.Context, req orchestrator.FetchRequest) (*orchestrator.FetchResult, error) {
	m.lastReq = req
	return m.result, nil
}

func (m *mockFetcher) TestProvider(context.Context) error { return m.testErr }

func (m *mockFetcher) ProviderHealth() map[string]provider.HealthRecord {
	return map[string]provider.HealthRecord{"openai:m": {Total: 3, Successes: 3}}
}

type mockReviews struct {
	items    []models.ReviewQueueItem
	statuses map[string]models.ReviewStatus
	setErr   error
}

func (m *mockReviews) List(status models.ReviewStatus) ([]models.ReviewQueueItem, error) {
	if status == "" {
		return m.items, nil
	}
	var out []models.ReviewQueueItem
	for _, item := range m.items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockReviews) SetStatus(id string, status models.ReviewStatus) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.statuses == nil {
		m.statuses = make(map[string]models.ReviewStatus)
	}
	m.statuses[id] = status
	return nil
}

func newTestServer(fetcher *mockFetcher, reviews *mockReviews) http.Handler {
	s := NewServer(fetcher, reviews, nil, provider.SelectorOpenAI, zerolog.Nop())
	return s.Router(Options{CORSOrigins: []string{"*"}, RateLimit: 1000})
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestGetRecommendations(t *testing.T) {
	fetcher := &mockFetcher{result: &orchestrator.FetchResult{
		Recommendations: []models.Recommendation{{Artist: "Can", Album: "Future Days", Confidence: 0.9}},
		Outcome:         orchestrator.OutcomeConverged,
		Attempts:        1,
	}}
	handler := newTestServer(fetcher, &mockReviews{})

	rr := doRequest(t, handler, http.MethodGet, "/api/v1/recommendations?count=5&mode=adjacent&artist_only=true")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	if fetcher.lastReq.Count != 5 || fetcher.lastReq.Mode != models.ModeAdjacent || !fetcher.lastReq.ArtistOnly {
		t.Errorf("parsed request = %+v", fetcher.lastReq)
	}
	if fetcher.lastReq.ForceRefresh {
		t.Error("GET must not force a refresh")
	}

	var result orchestrator.FetchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Recommendations) != 1 || result.Outcome != orchestrator.OutcomeConverged {
		t.Errorf("result = %+v", result)
	}
}

func TestGetRecommendationsValidation(t *testing.T) {
	handler := newTestServer(&mockFetcher{result: &orchestrator.FetchResult{}}, &mockReviews{})

	tests := []string{
		"/api/v1/recommendations?count=0",
		"/api/v1/recommendations?count=999",
		"/api/v1/recommendations?count=abc",
		"/api/v1/recommendations?mode=chaotic",
		"/api/v1/recommendations?artist_only=maybe",
	}
	for _, path := range tests {
		if rr := doRequest(t, handler, http.MethodGet, path); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rr.Code)
		}
	}
}

func TestRefreshForcesInvalidation(t *testing.T) {
	fetcher := &mockFetcher{result: &orchestrator.FetchResult{}}
	handler := newTestServer(fetcher, &mockReviews{})

	rr := doRequest(t, handler, http.MethodPost, "/api/v1/recommendations/refresh")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !fetcher.lastReq.ForceRefresh {
		t.Error("refresh must set ForceRefresh")
	}
}

func TestListModelsIncludesHealth(t *testing.T) {
	handler := newTestServer(&mockFetcher{result: &orchestrator.FetchResult{}}, &mockReviews{})

	rr := doRequest(t, handler, http.MethodGet, "/api/v1/providers/models")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"selector":"openai"`) || !strings.Contains(body, "openai:m") {
		t.Errorf("body = %s", body)
	}
}

func TestTestProviderReportsFailureInBody(t *testing.T) {
	fetcher := &mockFetcher{result: &orchestrator.FetchResult{}, testErr: context.DeadlineExceeded}
	handler := newTestServer(fetcher, &mockReviews{})

	rr := doRequest(t, handler, http.MethodPost, "/api/v1/providers/test")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, connection failures are a payload, not an HTTP error", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok":false`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestListReviewFiltersByStatus(t *testing.T) {
	reviews := &mockReviews{items: []models.ReviewQueueItem{
		{ID: "1", Status: models.ReviewPending},
		{ID: "2", Status: models.ReviewAccepted},
	}}
	handler := newTestServer(&mockFetcher{result: &orchestrator.FetchResult{}}, reviews)

	rr := doRequest(t, handler, http.MethodGet, "/api/v1/review?status=pending")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var payload struct {
		Items []models.ReviewQueueItem `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "1" {
		t.Errorf("items = %+v", payload.Items)
	}

	if rr := doRequest(t, handler, http.MethodGet, "/api/v1/review?status=bogus"); rr.Code != http.StatusBadRequest {
		t.Errorf("bogus status = %d, want 400", rr.Code)
	}
}

func TestReviewActions(t *testing.T) {
	reviews := &mockReviews{}
	handler := newTestServer(&mockFetcher{result: &orchestrator.FetchResult{}}, reviews)

	for action, want := range reviewActions {
		rr := doRequest(t, handler, http.MethodPost, "/api/v1/review/item-1/"+action)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", action, rr.Code)
		}
		if reviews.statuses["item-1"] != want {
			t.Errorf("%s: status = %v, want %v", action, reviews.statuses["item-1"], want)
		}
	}

	if rr := doRequest(t, handler, http.MethodPost, "/api/v1/review/item-1/explode"); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown action = %d, want 400", rr.Code)
	}

	reviews.setErr = reviewqueue.ErrNotFound
	if rr := doRequest(t, handler, http.MethodPost, "/api/v1/review/missing/accept"); rr.Code != http.StatusNotFound {
		t.Errorf("missing item = %d, want 404", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(&mockFetcher{result: &orchestrator.FetchResult{}}, &mockReviews{})

	rr := doRequest(t, handler, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Errorf("healthz = %d %s", rr.Code, rr.Body.String())
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	handler := newTestServer(&mockFetcher{result: &orchestrator.FetchResult{}}, &mockReviews{})

	rr := doRequest(t, handler, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Errorf("metrics = %d", rr.Code)
	}
}
