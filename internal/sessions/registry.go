// Package sessions hosts one form controller per browser session.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/drafts"
	"github.com/sfp-labs/fellowship-portal/internal/metrics"
)

// ErrInvalidKey means a session key is empty or contains unsupported characters.
var ErrInvalidKey = errors.New("invalid session key")

// StoreFactory returns the draft store for a session key.
type StoreFactory func(key string) application.DraftStore

// Config configures a Registry.
type Config struct {
	Stores    StoreFactory
	Submitter application.Submitter
	Deadlines func() application.Deadlines
	Clock     application.Clock
	Logger    *slog.Logger
}

// Session is a hosted controller plus the UI signals it has emitted.
type Session struct {
	Key        string
	Controller *application.Controller

	notifier *notifier
	lastSeen time.Time
}

// Drain returns and clears the signals emitted since the last call.
func (s *Session) Drain() Signals {
	return s.notifier.drain()
}

// Registry keeps live sessions in memory.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	if cfg.Stores == nil {
		backend := drafts.NewMemoryBackend()
		cfg.Stores = func(key string) application.DraftStore { return backend.Store(key) }
	}
	if cfg.Deadlines == nil {
		cfg.Deadlines = application.DefaultDeadlines
	}
	if cfg.Clock == nil {
		cfg.Clock = application.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for key, creating and hydrating it from its
// stored draft on first use.
func (r *Registry) Open(ctx context.Context, key string) (*Session, error) {
	if !drafts.ValidSessionKey(key) {
		return nil, ErrInvalidKey
	}

	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = r.newSession(key)
		r.sessions[key] = s
		metrics.SessionsActive.Set(float64(len(r.sessions)))
	}
	s.lastSeen = r.cfg.Clock.Now()
	r.mu.Unlock()

	// One-shot; concurrent openers wait on the controller lock.
	s.Controller.Hydrate(ctx)
	return s, nil
}

// Get returns an existing session and marks it as used.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if ok {
		s.lastSeen = r.cfg.Clock.Now()
	}
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle drops sessions unused for longer than maxIdle. Sessions with a
// submission in flight are kept. Drafts stay in their store, so an evicted
// session is restored on its next Open.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.cfg.Clock.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, s := range r.sessions {
		if s.lastSeen.After(cutoff) || s.Controller.Snapshot().Submitting {
			continue
		}
		delete(r.sessions, key)
		evicted++
	}
	metrics.SessionsActive.Set(float64(len(r.sessions)))

	if evicted > 0 {
		r.cfg.Logger.Info("evicted idle sessions", "count", evicted, "remaining", len(r.sessions))
	}
	return evicted
}

func (r *Registry) newSession(key string) *Session {
	n := &notifier{}
	ctrl := application.NewController(application.Options{
		Store:     r.cfg.Stores(key),
		Submitter: r.cfg.Submitter,
		Notifier:  n,
		Tracker:   tracker{},
		Clock:     r.cfg.Clock,
		Deadlines: r.cfg.Deadlines(),
		Logger:    r.cfg.Logger.With("session", key),
	})
	return &Session{Key: key, Controller: ctrl, notifier: n}
}
