// Package application implements the fellowship application form: the phase
// resolver, per-step validation, payload shaping and the controller that
// drives one applicant's session through the four form steps.
package application

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status escalation delays while a submission is in flight.
const (
	AlmostThereAfter     = 8 * time.Second
	StillProcessingAfter = 25 * time.Second
)

// View is what the applicant should currently see.
type View string

const (
	ViewStep         View = "step"
	ViewClosed       View = "closed"
	ViewConfirmation View = "confirmation"
)

// Options configures a Controller. Only Deadlines is required; everything
// else falls back to a no-op or the system clock.
type Options struct {
	Store     DraftStore
	Submitter Submitter
	Notifier  Notifier
	Tracker   Tracker
	Clock     Clock
	Deadlines Deadlines
	Logger    *slog.Logger
}

// State is a point-in-time read of a controller.
type State struct {
	View       View     `json:"view"`
	Phase      Phase    `json:"phase"`
	Step       int      `json:"step"`
	StepTitle  string   `json:"step_title"`
	FormData   FormData `json:"form_data"`
	Errors     []string `json:"errors"`
	Submitting bool     `json:"submitting"`
	Submitted  bool     `json:"submitted"`
	Status     string   `json:"status,omitempty"`
}

// Controller drives one applicant's form session.
type Controller struct {
	store     DraftStore
	submitter Submitter
	notifier  Notifier
	tracker   Tracker
	clock     Clock
	deadlines Deadlines
	logger    *slog.Logger

	mu         sync.Mutex
	data       FormData
	step       int
	errors     []string
	submitting bool
	submitted  bool
	status     string
	started    bool
	hydrated   bool
	attempt    int
	timers     []Timer
}

// NewController creates a controller with a blank form on step 0.
func NewController(opts Options) *Controller {
	c := &Controller{
		store:     opts.Store,
		submitter: opts.Submitter,
		notifier:  opts.Notifier,
		tracker:   opts.Tracker,
		clock:     opts.Clock,
		deadlines: opts.Deadlines,
		logger:    opts.Logger,
		data:      NewFormData(),
	}
	if c.store == nil {
		c.store = nopStore{}
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.tracker == nil {
		c.tracker = nopTracker{}
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Hydrate restores a previously saved draft. Only the first call has any
// effect; until it runs, mutations are not persisted.
func (c *Controller) Hydrate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hydrated {
		return
	}
	c.hydrated = true

	draft, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Debug("ignoring unreadable draft", "error", err)
		return
	}
	if draft == nil {
		return
	}

	c.data = draft.FormData.Clone()
	c.data.normalize()
	if draft.Step >= 0 && draft.Step <= LastStep {
		c.step = draft.Step
	} else {
		c.logger.Debug("ignoring out-of-range draft step", "step", draft.Step)
	}
}

// Phase resolves the current phase.
func (c *Controller) Phase() Phase {
	return c.deadlines.Resolve(c.clock.Now())
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	phase := c.Phase()
	view := ViewStep
	switch {
	case c.submitted:
		view = ViewConfirmation
	case phase == PhaseClosed:
		view = ViewClosed
	}

	return State{
		View:       view,
		Phase:      phase,
		Step:       c.step,
		StepTitle:  StepTitles[c.step],
		FormData:   c.data.Clone(),
		Errors:     append([]string{}, c.errors...),
		Submitting: c.submitting,
		Submitted:  c.submitted,
		Status:     c.status,
	}
}

// Update sets one field and persists the draft.
func (c *Controller) Update(ctx context.Context, f Field, v Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrAlreadySubmitted
	}
	if c.submitting {
		return ErrSubmitInProgress
	}
	if err := c.data.Apply(f, v); err != nil {
		return err
	}

	if !c.started {
		c.started = true
		c.tracker.FormStarted()
	}

	c.persistLocked(ctx)
	return nil
}

// Next validates the current step and advances on success.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrAlreadySubmitted
	}
	if c.step >= LastStep {
		return ErrInvalidStep
	}

	if errs := Validate(c.step, c.data, c.Phase()); len(errs) > 0 {
		return c.rejectLocked(errs)
	}

	c.errors = nil
	c.step++
	c.notifier.ScrollToTop()
	c.persistLocked(ctx)
	return nil
}

// Back returns to the given step, which must not be ahead of the current one.
func (c *Controller) Back(ctx context.Context, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrAlreadySubmitted
	}
	if c.submitting {
		return ErrSubmitInProgress
	}
	if to < 0 || to > c.step {
		return ErrInvalidStep
	}

	c.step = to
	c.errors = nil
	c.notifier.ScrollToTop()
	c.persistLocked(ctx)
	return nil
}

// Submit validates the final step and hands the prepared payload to the
// submitter. The phase is resolved again here so that a session crossing the
// last deadline cannot submit.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()

	switch {
	case c.submitting:
		c.mu.Unlock()
		return ErrSubmitInProgress
	case c.submitted:
		c.mu.Unlock()
		return ErrAlreadySubmitted
	case c.step != LastStep:
		c.mu.Unlock()
		return ErrInvalidStep
	case c.submitter == nil:
		c.mu.Unlock()
		return ErrNoSubmitter
	}

	phase := c.Phase()
	if phase == PhaseClosed {
		c.notifier.Toast(ToastError, MessageClosed)
		c.mu.Unlock()
		return ErrApplicationsClosed
	}

	if errs := Validate(c.step, c.data, phase); len(errs) > 0 {
		err := c.rejectLocked(errs)
		c.mu.Unlock()
		return err
	}

	c.submitting = true
	c.errors = nil
	c.attempt++
	c.startStatusLocked(c.attempt)
	payload := PreparePayload(c.data, phase, c.clock.Now())
	c.mu.Unlock()

	err := c.submitter.Submit(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopStatusLocked()
	c.submitting = false

	if err != nil {
		c.logger.Warn("application submission failed", "error", err, "phase", phase)
		c.notifier.Toast(ToastError, userMessage(err))
		return err
	}

	c.submitted = true
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Debug("failed to clear draft", "error", err)
	}
	c.notifier.Toast(ToastSuccess, MessageSubmitted)
	c.logger.Info("application submitted", "phase", phase)
	return nil
}

// Reset discards all answers after an explicit confirmation. A submitted
// application stays submitted.
func (c *Controller) Reset(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrResetNotConfirmed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrAlreadySubmitted
	}
	if c.submitting {
		return ErrSubmitInProgress
	}

	c.data = NewFormData()
	c.step = StepPersonalInfo
	c.errors = nil
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Debug("failed to clear draft", "error", err)
	}
	return nil
}

func (c *Controller) rejectLocked(errs []string) error {
	c.errors = errs
	c.notifier.Toast(ToastError, errs[0])
	return &ValidationError{Step: c.step, Messages: append([]string{}, errs...)}
}

func (c *Controller) persistLocked(ctx context.Context) {
	if !c.hydrated {
		return
	}
	if err := c.store.Save(ctx, Draft{FormData: c.data.Clone(), Step: c.step}); err != nil {
		c.logger.Debug("failed to save draft", "error", err)
	}
}

func (c *Controller) startStatusLocked(attempt int) {
	c.setStatusLocked(MessageSubmitting)
	c.timers = []Timer{
		c.clock.AfterFunc(AlmostThereAfter, func() { c.escalate(attempt, MessageAlmostThere) }),
		c.clock.AfterFunc(StillProcessingAfter, func() { c.escalate(attempt, MessageStillProcessing) }),
	}
}

func (c *Controller) stopStatusLocked() {
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.status = ""
}

func (c *Controller) escalate(attempt int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.submitting || c.attempt != attempt {
		return
	}
	c.setStatusLocked(message)
}

func (c *Controller) setStatusLocked(message string) {
	c.status = message
	c.notifier.Status(message)
}
