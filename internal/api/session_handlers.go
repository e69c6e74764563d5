package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/sessions"
)

// sessionResponse is the form state plus the UI signals raised by the call
type sessionResponse struct {
	Key     string            `json:"key"`
	State   application.State `json:"state"`
	Signals sessions.Signals  `json:"signals"`
}

type updateFieldRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type backRequest struct {
	Step *int `json:"step"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

func respondSession(w http.ResponseWriter, status int, sess *sessions.Session) {
	respondJSON(w, status, sessionResponse{
		Key:     sess.Key,
		State:   sess.Controller.Snapshot(),
		Signals: sess.Drain(),
	})
}

// respondSessionError reports a controller error together with the state
func respondSessionError(w http.ResponseWriter, r *http.Request, sess *sessions.Session, err error) {
	status, code, message := statusForControllerError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("form operation failed", "session", sess.Key, "path", r.URL.Path, "error", err)
	}
	respondErrorWithData(w, status, code, message, sessionResponse{
		Key:     sess.Key,
		State:   sess.Controller.Snapshot(),
		Signals: sess.Drain(),
	})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	respondSession(w, http.StatusOK, sessionOrPanic(r))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	respondSession(w, http.StatusOK, sessionOrPanic(r))
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	sess := sessionOrPanic(r)

	var req updateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	field, err := application.ParseField(req.Field)
	if err != nil {
		respondSessionError(w, r, sess, err)
		return
	}
	value, err := application.DecodeValue(field, req.Value)
	if err != nil {
		respondSessionError(w, r, sess, err)
		return
	}

	if err := sess.Controller.Update(r.Context(), field, value); err != nil {
		respondSessionError(w, r, sess, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess := sessionOrPanic(r)
	if err := sess.Controller.Next(r.Context()); err != nil {
		respondSessionError(w, r, sess, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	sess := sessionOrPanic(r)

	var req backRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Step == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "step is required")
		return
	}

	if err := sess.Controller.Back(r.Context(), *req.Step); err != nil {
		respondSessionError(w, r, sess, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := sessionOrPanic(r)
	if err := sess.Controller.Submit(r.Context()); err != nil {
		respondSessionError(w, r, sess, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionOrPanic(r)

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := sess.Controller.Reset(r.Context(), req.Confirm); err != nil {
		respondSessionError(w, r, sess, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}
