// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/resonarr/resonarr/internal/metrics"
	"github.com/resonarr/resonarr/internal/models"
	"github.com/resonarr/resonarr/internal/orchestrator"
	"github.com/resonarr/resonarr/internal/reviewqueue"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseFetchRequest reads the fetch parameters shared by the fetch and
// refresh actions.
func (s *Server) parseFetchRequest(r *http.Request) (orchestrator.FetchRequest, error) {
	req := orchestrator.FetchRequest{}
	q := r.URL.Query()

	if raw := q.Get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count < 1 || count > 100 {
			return req, errors.New("count must be an integer between 1 and 100")
		}
		req.Count = count
	}
	if raw := q.Get("mode"); raw != "" {
		mode := models.Mode(raw)
		if !mode.Valid() {
			return req, errors.New("mode must be one of similar, adjacent, exploratory")
		}
		req.Mode = mode
	}
	if raw := q.Get("artist_only"); raw != "" {
		artistOnly, err := strconv.ParseBool(raw)
		if err != nil {
			return req, errors.New("artist_only must be a boolean")
		}
		req.ArtistOnly = artistOnly
	}
	return req, nil
}

func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseFetchRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.fetcher.Fetch(r.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch failed")
		s.writeError(w, http.StatusInternalServerError, "fetch failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseFetchRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ForceRefresh = true

	result, err := s.fetcher.Fetch(r.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Msg("refresh fetch failed")
		s.writeError(w, http.StatusInternalServerError, "fetch failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"selector": s.selector,
		"health":   s.fetcher.ProviderHealth(),
	}

	if s.models != nil {
		registry, err := s.models.GetOrRefresh(r.Context())
		if err != nil {
			s.logger.Warn().Err(err).Msg("model registry unavailable")
		} else {
			response["registry_models"] = registry.Models
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	if err := s.fetcher.TestProvider(r.Context()); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListReview(w http.ResponseWriter, r *http.Request) {
	status := models.ReviewStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown review status")
		return
	}

	items, err := s.reviews.List(status)
	if err != nil {
		s.logger.Error().Err(err).Msg("review list failed")
		s.writeError(w, http.StatusInternalServerError, "review list failed")
		return
	}
	if items == nil {
		items = []models.ReviewQueueItem{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// reviewActions maps URL actions to queue dispositions.
var reviewActions = map[string]models.ReviewStatus{
	"accept": models.ReviewAccepted,
	"reject": models.ReviewRejected,
	"never":  models.ReviewNever,
}

func (s *Server) handleReviewAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, ok := reviewActions[chi.URLParam(r, "action")]
	if !ok {
		s.writeError(w, http.StatusBadRequest, "action must be accept, reject or never")
		return
	}

	if err := s.reviews.SetStatus(id, status); err != nil {
		if errors.Is(err, reviewqueue.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "review item not found")
			return
		}
		s.logger.Error().Err(err).Str("id", id).Msg("review update failed")
		s.writeError(w, http.StatusInternalServerError, "review update failed")
		return
	}

	s.updateReviewDepth()
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

// updateReviewDepth refreshes the pending-queue gauge after a mutation.
func (s *Server) updateReviewDepth() {
	pending, err := s.reviews.List(models.ReviewPending)
	if err != nil {
		return
	}
	metrics.ReviewQueueDepth.Set(float64(len(pending)))
}
