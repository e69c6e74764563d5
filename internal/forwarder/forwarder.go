// Package forwarder relays prepared applications to the spreadsheet script
// endpoint.
//
// The script processes rows synchronously but is slow to answer, so each
// relay races the upstream response against an optimistic timer:
//
//   - upstream answers 200 or a redirect first: success
//   - the timer fires first: optimistic success, and the upstream call keeps
//     running in the background until it answers or the hard timeout expires
//   - any network error or other status: failure
//
// Optimistic successes are logged, counted and recorded separately so they
// are never confused with confirmed ones.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sfp-labs/fellowship-portal/internal/metrics"
	"github.com/sfp-labs/fellowship-portal/internal/models"
)

const (
	DefaultOptimisticAfter = 12 * time.Second
	DefaultHardTimeout     = 60 * time.Second

	mirrorTimeout = 15 * time.Second
	ledgerTimeout = 5 * time.Second
)

var (
	// ErrUpstream means the script endpoint failed or could not be reached.
	ErrUpstream = errors.New("upstream submission failed")
	// ErrNotConfigured means no script URL was set.
	ErrNotConfigured = errors.New("forwarder script URL not configured")
)

// Recorder persists submission attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, a *models.SubmissionAttempt) error
	ResolveLateOutcome(ctx context.Context, id string, outcome models.Outcome, status int, errMsg string) error
}

// Mirror copies a successful submission to a secondary store.
type Mirror interface {
	Mirror(ctx context.Context, payload map[string]any) error
}

// Config holds forwarder settings
type Config struct {
	ScriptURL       string
	OptimisticAfter time.Duration
	HardTimeout     time.Duration
}

// Result describes how a relay was resolved.
type Result struct {
	ID         string         `json:"id"`
	Outcome    models.Outcome `json:"outcome"`
	StatusCode int            `json:"status_code,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// Forwarder relays submissions upstream.
type Forwarder struct {
	cfg      Config
	client   *http.Client
	recorder Recorder
	mirror   Mirror
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// Option configures a Forwarder
type Option func(*Forwarder)

// WithHTTPClient replaces the upstream HTTP client. Redirects are never
// followed regardless of the client's own policy.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		clone := *c
		clone.CheckRedirect = noRedirects
		f.client = &clone
	}
}

// WithRecorder records every attempt in a ledger.
func WithRecorder(r Recorder) Option {
	return func(f *Forwarder) { f.recorder = r }
}

// WithMirror copies successful submissions to m.
func WithMirror(m Mirror) Option {
	return func(f *Forwarder) { f.mirror = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(f *Forwarder) { f.logger = l }
}

// New creates a forwarder
func New(cfg Config, opts ...Option) *Forwarder {
	if cfg.OptimisticAfter <= 0 {
		cfg.OptimisticAfter = DefaultOptimisticAfter
	}
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = DefaultHardTimeout
	}

	f := &Forwarder{
		cfg:    cfg,
		client: &http.Client{CheckRedirect: noRedirects},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type upstreamResult struct {
	status int
	err    error
}

func (u upstreamResult) outcome() models.Outcome {
	if u.err == nil && isSuccessStatus(u.status) {
		return models.OutcomeSuccess
	}
	return models.OutcomeFailure
}

func (u upstreamResult) asError() error {
	if u.err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, u.err)
	}
	if !isSuccessStatus(u.status) {
		return fmt.Errorf("%w: status %d", ErrUpstream, u.status)
	}
	return nil
}

// Forward posts body to the script endpoint unchanged. A nil error means the
// applicant may be told the submission succeeded; check Result.Outcome to tell
// confirmed from optimistic success.
func (f *Forwarder) Forward(ctx context.Context, body []byte) (Result, error) {
	if f.cfg.ScriptURL == "" {
		return Result{Outcome: models.OutcomeFailure}, ErrNotConfigured
	}

	start := time.Now()
	res := Result{ID: uuid.NewString()}
	logger := f.logger.With("attempt_id", res.ID)

	// The upstream call outlives the request once an optimistic answer is given.
	upCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.HardTimeout)
	done := make(chan upstreamResult, 1)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer cancel()
		done <- f.post(upCtx, body)
	}()

	timer := time.NewTimer(f.cfg.OptimisticAfter)
	defer timer.Stop()

	var up upstreamResult
	select {
	case up = <-done:
		res.Outcome = up.outcome()
		res.StatusCode = up.status
	case <-timer.C:
		res.Outcome = models.OutcomeOptimisticSuccess
	case <-ctx.Done():
		res.Outcome = models.OutcomeFailure
		up.err = ctx.Err()
	}
	res.Duration = time.Since(start)

	metrics.ForwardOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	metrics.ForwardDuration.WithLabelValues(string(res.Outcome)).Observe(res.Duration.Seconds())

	payload := decodePayload(body)
	f.record(ctx, res, up, payload)

	switch res.Outcome {
	case models.OutcomeSuccess:
		logger.Info("submission forwarded", "status", res.StatusCode, "duration", res.Duration)
		f.mirrorAsync(ctx, res.ID, payload)
		return res, nil

	case models.OutcomeOptimisticSuccess:
		logger.Warn("upstream still pending, reporting optimistic success", "waited", res.Duration)
		f.mirrorAsync(ctx, res.ID, payload)
		f.awaitLate(logger, res.ID, done)
		return res, nil

	default:
		err := up.asError()
		if errors.Is(up.err, context.Canceled) || errors.Is(up.err, context.DeadlineExceeded) {
			// Caller gone; the upstream answer is recorded when it arrives.
			err = up.err
			f.awaitLate(logger, res.ID, done)
		}
		logger.Error("submission forward failed", "status", res.StatusCode, "duration", res.Duration, "error", err)
		return res, err
	}
}

// Wait blocks until background upstream calls, late resolutions and mirror
// writes have finished.
func (f *Forwarder) Wait() {
	f.wg.Wait()
}

func (f *Forwarder) post(ctx context.Context, body []byte) upstreamResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.ScriptURL, bytes.NewReader(body))
	if err != nil {
		return upstreamResult{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return upstreamResult{err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return upstreamResult{status: resp.StatusCode}
}

// awaitLate logs and records what the upstream eventually answered.
func (f *Forwarder) awaitLate(logger *slog.Logger, id string, done <-chan upstreamResult) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		up := <-done
		outcome := up.outcome()
		metrics.ForwardLateOutcomes.WithLabelValues(string(outcome)).Inc()

		errMsg := ""
		if err := up.asError(); err != nil {
			errMsg = err.Error()
			logger.Error("late upstream failure after optimistic success", "status", up.status, "error", err)
		} else {
			logger.Info("late upstream confirmation", "status", up.status)
		}

		if f.recorder == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
		defer cancel()
		if err := f.recorder.ResolveLateOutcome(ctx, id, outcome, up.status, errMsg); err != nil {
			logger.Warn("failed to record late outcome", "error", err)
		}
	}()
}

func (f *Forwarder) record(ctx context.Context, res Result, up upstreamResult, payload map[string]any) {
	if f.recorder == nil {
		return
	}

	a := &models.SubmissionAttempt{
		ID:             res.ID,
		FormType:       stringField(payload, "formType"),
		Email:          stringField(payload, "email"),
		FullName:       stringField(payload, "fullName"),
		Outcome:        res.Outcome,
		UpstreamStatus: res.StatusCode,
		DurationMs:     res.Duration.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
		Payload:        payload,
	}
	if res.Outcome == models.OutcomeFailure {
		if err := up.asError(); err != nil {
			a.Error = err.Error()
		}
	}
	if res.Outcome != models.OutcomeOptimisticSuccess {
		resolved := a.CreatedAt
		a.ResolvedAt = &resolved
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := f.recorder.RecordAttempt(rctx, a); err != nil {
		f.logger.Warn("failed to record submission attempt", "attempt_id", res.ID, "error", err)
	}
}

func (f *Forwarder) mirrorAsync(ctx context.Context, id string, payload map[string]any) {
	if f.mirror == nil || payload == nil {
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
		defer cancel()
		if err := f.mirror.Mirror(mctx, payload); err != nil {
			metrics.MirrorFailures.Inc()
			f.logger.Warn("table mirror failed", "attempt_id", id, "error", err)
		}
	}()
}

func noRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func isSuccessStatus(code int) bool {
	return code == http.StatusOK || (code >= 300 && code < 400)
}

func decodePayload(body []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil
	}
	return m
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
