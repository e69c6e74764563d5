package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sfp-labs/fellowship-portal/internal/models"
)

// --- Admin handlers (API key auth) ---

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.AttemptFilters{
		Outcome:  models.Outcome(q.Get("outcome")),
		FormType: q.Get("form_type"),
		Email:    q.Get("email"),
		Limit:    50,
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			filters.Limit = l
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filters.Offset = o
		}
	}

	switch filters.Outcome {
	case "", models.OutcomeSuccess, models.OutcomeOptimisticSuccess, models.OutcomeFailure:
	default:
		respondError(w, http.StatusBadRequest, "validation_error", "unknown outcome filter")
		return
	}

	attempts, err := s.ledger.ListAttempts(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list attempts", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []*models.SubmissionAttempt{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"total":    len(attempts),
		"limit":    filters.Limit,
		"offset":   filters.Offset,
	})
}

func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusNotFound, "not_found", "attempt not found")
		return
	}

	attempt, err := s.ledger.GetAttempt(r.Context(), id)
	if err != nil {
		slog.Error("failed to get attempt", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get attempt")
		return
	}
	if attempt == nil {
		respondError(w, http.StatusNotFound, "not_found", "attempt not found")
		return
	}

	respondJSON(w, http.StatusOK, attempt)
}
