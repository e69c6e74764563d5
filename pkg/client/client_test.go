package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfp-labs/fellowship-portal/internal/api"
	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/config"
	"github.com/sfp-labs/fellowship-portal/internal/drafts"
	"github.com/sfp-labs/fellowship-portal/internal/models"
	"github.com/sfp-labs/fellowship-portal/internal/program"
	"github.com/sfp-labs/fellowship-portal/internal/sessions"
)

func newPortal(t *testing.T) *Client {
	t.Helper()
	backend := drafts.NewMemoryBackend()
	now := time.Now()
	registry := sessions.NewRegistry(sessions.Config{
		Stores: func(key string) application.DraftStore { return backend.Store(key) },
		Deadlines: func() application.Deadlines {
			return application.Deadlines{EarlyBird: now.Add(time.Hour), Official: now.Add(48 * time.Hour)}
		},
	})

	srv := api.NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080}, api.Dependencies{
		Sessions: registry,
		Program:  program.NewLoader(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL, WithTimeout(5*time.Second))
}

func TestClientHealthAndPhase(t *testing.T) {
	c := newPortal(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	phase, err := c.GetPhase(ctx)
	require.NoError(t, err)
	assert.Equal(t, application.PhaseEarlyBird, phase.Phase)
	require.NotNil(t, phase.NextDeadline)
	assert.Greater(t, phase.SecondsRemaining, int64(0))

	prog, err := c.GetProgram(ctx)
	require.NoError(t, err)
	assert.Equal(t, program.Default().Name, prog.Name)
}

func TestClientSessionFlow(t *testing.T) {
	c := newPortal(t)
	ctx := context.Background()
	key := "sdk-session-1"

	sess, err := c.OpenSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, sess.Key)
	assert.Equal(t, 0, sess.State.Step)

	sess, err = c.UpdateField(ctx, key, application.FieldFullName, "Tran Thi Binh")
	require.NoError(t, err)
	assert.Equal(t, "Tran Thi Binh", sess.State.FormData.FullName)

	_, err = c.Next(ctx, key)
	var serr *SessionError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusUnprocessableEntity, serr.StatusCode)
	assert.Equal(t, "validation_failed", serr.Code)
	require.NotNil(t, serr.Session)
	assert.NotEmpty(t, serr.Session.State.Errors)
	require.NotEmpty(t, serr.Session.Signals.Toasts)
	assert.Equal(t, application.ToastError, serr.Session.Signals.Toasts[0].Level)

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))

	_, err = c.Reset(ctx, key, false)
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "confirmation_required", serr.Code)

	sess, err = c.Reset(ctx, key, true)
	require.NoError(t, err)
	assert.Empty(t, sess.State.FormData.FullName)

	got, err := c.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, got.State.Step)
}

func TestClientInvalidSessionKey(t *testing.T) {
	c := newPortal(t)

	_, err := c.OpenSession(context.Background(), "bad*key")
	var serr *SessionError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
	assert.Nil(t, serr.Session)
}

func TestClientSubmit(t *testing.T) {
	var received application.Payload
	status := http.StatusOK
	response := `{"success":true}`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/submit", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	var _ application.Submitter = c

	payload := application.Payload{
		application.KeyFormType:  "official",
		application.KeyTimestamp: "2026-10-18T08:00:00.000Z",
		"fullName":               "Le Van Cuong",
	}

	require.NoError(t, c.Submit(context.Background(), payload))
	assert.Equal(t, "Le Van Cuong", received["fullName"])

	status = http.StatusBadGateway
	response = `{"success":false,"error":"Submission failed upstream"}`

	err := c.Submit(context.Background(), payload)
	var subErr *application.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusBadGateway, subErr.StatusCode)
	assert.Equal(t, "Submission failed upstream", subErr.Error())
}

func TestClientSubmitUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithTimeout(time.Second))

	err := c.Submit(context.Background(), application.Payload{})
	var subErr *application.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Zero(t, subErr.StatusCode)
}

func TestClientListAttempts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer admin-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"unauthorized","message":"invalid API key"}}`))
			return
		}
		assert.Equal(t, "failure", r.URL.Query().Get("outcome"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"attempts":[{"id":"a1","form_type":"official","outcome":"failure","duration_ms":12,"created_at":"2026-10-18T08:00:00Z"}],"total":1,"limit":20,"offset":0}}`))
	}))
	defer ts.Close()

	filters := models.AttemptFilters{Outcome: models.OutcomeFailure, Limit: 20}

	_, err := NewClient(ts.URL).ListAttempts(context.Background(), filters)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)

	list, err := NewClient(ts.URL, WithAPIKey("admin-key")).ListAttempts(context.Background(), filters)
	require.NoError(t, err)
	require.Len(t, list.Attempts, 1)
	assert.Equal(t, "a1", list.Attempts[0].ID)
	assert.Equal(t, models.OutcomeFailure, list.Attempts[0].Outcome)
}
