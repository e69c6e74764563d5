package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/forwarder"
)

const (
	maxSubmissionBytes = 1 << 20
	readinessTimeout   = 5 * time.Second
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorWithData(w, status, code, message, nil)
}

// respondErrorWithData reports an error alongside a payload, so the form can
// redraw its state next to the message.
func respondErrorWithData(w http.ResponseWriter, status int, code, message string, data interface{}) {
	writeJSON(w, status, apiResponse{
		Success: false,
		Data:    data,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	failed := make(map[string]string)

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)
	for name, check := range s.checks {
		eg.Go(func() error {
			if err := check(egCtx); err != nil {
				slog.Warn("readiness check failed", "check", name, "error", err)
				mu.Lock()
				failed[name] = "unavailable"
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	if len(failed) > 0 {
		respondErrorWithData(w, http.StatusServiceUnavailable, "not_ready", "service not ready", failed)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Program handlers

type phaseResponse struct {
	Phase            application.Phase     `json:"phase"`
	NextDeadline     *time.Time            `json:"next_deadline,omitempty"`
	SecondsRemaining int64                 `json:"seconds_remaining"`
	Deadlines        application.Deadlines `json:"deadlines"`
}

func (s *Server) handleGetPhase(w http.ResponseWriter, r *http.Request) {
	deadlines := s.program.Get().Deadlines
	phase, remaining := deadlines.Countdown(s.now())

	resp := phaseResponse{
		Phase:            phase,
		SecondsRemaining: int64(remaining / time.Second),
		Deadlines:        deadlines,
	}
	if next, ok := deadlines.NextDeadline(phase); ok {
		resp.NextDeadline = &next
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.program.Get())
}

// Submission relay

// submitResponse is the relay's own contract, which the form reads directly.
type submitResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleForwardSubmission(w http.ResponseWriter, r *http.Request) {
	if s.forwarder == nil {
		writeJSON(w, http.StatusServiceUnavailable, submitResponse{Error: forwarder.MessageInternal})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: forwarder.MessageInvalidPayload})
		return
	}

	if err := forwarder.ValidatePayload(body); err != nil {
		slog.Warn("rejected submission payload", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusBadRequest, submitResponse{Error: forwarder.MessageInvalidPayload})
		return
	}

	res, err := s.forwarder.Forward(r.Context(), body)
	if err != nil {
		writeJSON(w, forwarder.StatusFor(err), submitResponse{Error: forwarder.MessageFor(err)})
		return
	}

	w.Header().Set("X-Submission-Outcome", string(res.Outcome))
	writeJSON(w, http.StatusOK, submitResponse{Success: true})
}

// statusForControllerError maps controller errors to HTTP status and code
func statusForControllerError(err error) (int, string, string) {
	var verr *application.ValidationError
	var serr *application.SubmissionError

	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "validation_failed", verr.Error()
	case errors.As(err, &serr):
		status := serr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		return status, "submission_failed", serr.Error()
	case errors.Is(err, application.ErrUnknownField):
		return http.StatusBadRequest, "unknown_field", err.Error()
	case errors.Is(err, application.ErrFieldKind),
		errors.Is(err, application.ErrUnknownRating),
		errors.Is(err, application.ErrRatingRange):
		return http.StatusBadRequest, "invalid_value", err.Error()
	case errors.Is(err, application.ErrInvalidStep):
		return http.StatusBadRequest, "invalid_step", err.Error()
	case errors.Is(err, application.ErrResetNotConfirmed):
		return http.StatusBadRequest, "confirmation_required", err.Error()
	case errors.Is(err, application.ErrApplicationsClosed):
		return http.StatusForbidden, "applications_closed", application.MessageClosed
	case errors.Is(err, application.ErrSubmitInProgress):
		return http.StatusConflict, "submit_in_progress", err.Error()
	case errors.Is(err, application.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted", err.Error()
	case errors.Is(err, application.ErrNoSubmitter):
		return http.StatusServiceUnavailable, "submissions_unavailable", "submissions are not available right now"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
