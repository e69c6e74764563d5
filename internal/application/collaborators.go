package application

import (
	"context"
	"time"
)

// Draft is the persisted in-progress application.
type Draft struct {
	FormData FormData `json:"formData"`
	Step     int      `json:"step"`
}

// DraftStore persists one session's draft under a fixed key.
type DraftStore interface {
	Load(ctx context.Context) (*Draft, error)
	Save(ctx context.Context, d Draft) error
	Clear(ctx context.Context) error
}

// Submitter delivers a prepared payload. Failures should be *SubmissionError
// when a user-facing message is available.
type Submitter interface {
	Submit(ctx context.Context, p Payload) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, p Payload) error

func (f SubmitterFunc) Submit(ctx context.Context, p Payload) error {
	return f(ctx, p)
}

// ToastLevel classifies a transient user notification.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
)

// Notifier receives UI signals from the controller. Calls are made while the
// controller holds its lock, so implementations must not call back into it.
type Notifier interface {
	Toast(level ToastLevel, message string)
	ScrollToTop()
	Status(message string)
}

// Tracker receives analytics events.
type Tracker interface {
	FormStarted()
}

// Clock abstracts wall time and timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// SystemClock uses the real time package.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type nopNotifier struct{}

func (nopNotifier) Toast(ToastLevel, string) {}
func (nopNotifier) ScrollToTop()             {}
func (nopNotifier) Status(string)            {}

type nopTracker struct{}

func (nopTracker) FormStarted() {}

type nopStore struct{}

func (nopStore) Load(context.Context) (*Draft, error) { return nil, nil }
func (nopStore) Save(context.Context, Draft) error    { return nil }
func (nopStore) Clear(context.Context) error          { return nil }
