// Package sweeper runs the portal's periodic maintenance jobs.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/metrics"
)

// Default schedules and windows.
const (
	DefaultPhaseSpec   = "@every 1m"
	DefaultSessionSpec = "@every 5m"
	DefaultPruneSpec   = "@daily"

	DefaultSessionIdle = 2 * time.Hour
	DefaultRetention   = 180 * 24 * time.Hour
)

// Evictor drops idle form sessions.
type Evictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// DraftPruner drops expired drafts from a store that has no native expiry.
type DraftPruner interface {
	Prune() int
}

// Pruner deletes old ledger rows.
type Pruner interface {
	PruneAttempts(ctx context.Context, before time.Time) (int64, error)
}

// Config holds sweeper schedules
type Config struct {
	PhaseSpec   string
	SessionSpec string
	PruneSpec   string
	SessionIdle time.Duration
	Retention   time.Duration
}

// Sweeper schedules maintenance with cron.
type Sweeper struct {
	cfg       Config
	cron      *cron.Cron
	deadlines func() application.Deadlines
	sessions  Evictor
	ledger    Pruner
	drafts    DraftPruner
	now       func() time.Time
}

// New creates a sweeper. ledger may be nil when no database is configured.
func New(cfg Config, deadlines func() application.Deadlines, sessions Evictor, ledger Pruner) *Sweeper {
	if cfg.PhaseSpec == "" {
		cfg.PhaseSpec = DefaultPhaseSpec
	}
	if cfg.SessionSpec == "" {
		cfg.SessionSpec = DefaultSessionSpec
	}
	if cfg.PruneSpec == "" {
		cfg.PruneSpec = DefaultPruneSpec
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = DefaultSessionIdle
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	return &Sweeper{
		cfg: cfg,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		deadlines: deadlines,
		sessions:  sessions,
		ledger:    ledger,
		now:       time.Now,
	}
}

// SetDraftPruner makes the session job also drop expired drafts. Call it
// before Start.
func (s *Sweeper) SetDraftPruner(p DraftPruner) {
	s.drafts = p
}

// Start registers the jobs and starts the scheduler. The phase gauge is set
// immediately so it is correct before the first tick.
func (s *Sweeper) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"phase", s.cfg.PhaseSpec, s.RefreshPhase},
		{"sessions", s.cfg.SessionSpec, func() {
			s.EvictSessions()
			s.PruneDrafts()
		}},
	}
	if s.ledger != nil {
		jobs = append(jobs, struct {
			name string
			spec string
			run  func()
		}{"ledger", s.cfg.PruneSpec, func() { s.PruneLedger(ctx) }})
	}

	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			return fmt.Errorf("failed to schedule %s job %q: %w", j.name, j.spec, err)
		}
	}

	s.RefreshPhase()
	s.cron.Start()
	slog.Info("sweeper started",
		"phase_spec", s.cfg.PhaseSpec,
		"session_spec", s.cfg.SessionSpec,
		"prune_spec", s.cfg.PruneSpec,
		"ledger", s.ledger != nil,
	)
	return nil
}

// Stop halts scheduling and waits for running jobs.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("sweeper stopped")
}

// RefreshPhase updates the current-phase gauge.
func (s *Sweeper) RefreshPhase() {
	phase := s.deadlines().Resolve(s.now())
	metrics.SetPhase(string(phase),
		string(application.PhaseEarlyBird),
		string(application.PhaseOfficial),
		string(application.PhaseClosed),
	)
}

// EvictSessions drops sessions idle for longer than the configured window.
func (s *Sweeper) EvictSessions() int {
	return s.sessions.EvictIdle(s.cfg.SessionIdle)
}

// PruneDrafts drops expired in-memory drafts.
func (s *Sweeper) PruneDrafts() int {
	if s.drafts == nil {
		return 0
	}
	n := s.drafts.Prune()
	if n > 0 {
		slog.Info("pruned expired drafts", "deleted", n)
	}
	return n
}

// PruneLedger deletes attempts older than the retention window.
func (s *Sweeper) PruneLedger(ctx context.Context) int64 {
	if s.ledger == nil {
		return 0
	}

	before := s.now().Add(-s.cfg.Retention)
	n, err := s.ledger.PruneAttempts(ctx, before)
	if err != nil {
		slog.Error("failed to prune submission ledger", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("pruned submission ledger", "deleted", n, "before", before)
	}
	return n
}
