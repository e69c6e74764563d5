package application

import (
	"fmt"
	"time"
)

// Phase is the submission window the application currently falls into.
type Phase string

const (
	PhaseEarlyBird Phase = "early-bird"
	PhaseOfficial  Phase = "official"
	PhaseClosed    Phase = "closed"
)

// Default program deadlines, both inclusive.
var (
	DefaultEarlyBirdDeadline = time.Date(2026, time.November, 15, 23, 59, 59, 0, time.FixedZone("ICT", 7*60*60))
	DefaultOfficialDeadline  = time.Date(2026, time.December, 15, 23, 59, 59, 0, time.FixedZone("ICT", 7*60*60))
)

// Deadlines delimits early-bird -> official -> closed.
type Deadlines struct {
	EarlyBird time.Time `json:"early_bird"`
	Official  time.Time `json:"official"`
}

// DefaultDeadlines returns the built-in program deadlines
func DefaultDeadlines() Deadlines {
	return Deadlines{
		EarlyBird: DefaultEarlyBirdDeadline,
		Official:  DefaultOfficialDeadline,
	}
}

// Validate checks that the early-bird deadline precedes the official one
func (d Deadlines) Validate() error {
	if d.EarlyBird.IsZero() || d.Official.IsZero() {
		return fmt.Errorf("both deadlines are required")
	}
	if !d.EarlyBird.Before(d.Official) {
		return fmt.Errorf("early-bird deadline %s must precede official deadline %s",
			d.EarlyBird.Format(time.RFC3339), d.Official.Format(time.RFC3339))
	}
	return nil
}

// Resolve maps a wall-clock instant to its phase.
func (d Deadlines) Resolve(now time.Time) Phase {
	switch {
	case !now.After(d.EarlyBird):
		return PhaseEarlyBird
	case !now.After(d.Official):
		return PhaseOfficial
	default:
		return PhaseClosed
	}
}

// Countdown returns the phase at now and the time left until that phase ends.
// The remaining duration is zero once applications are closed.
func (d Deadlines) Countdown(now time.Time) (Phase, time.Duration) {
	phase := d.Resolve(now)
	switch phase {
	case PhaseEarlyBird:
		return phase, d.EarlyBird.Sub(now)
	case PhaseOfficial:
		return phase, d.Official.Sub(now)
	default:
		return phase, 0
	}
}

// NextDeadline returns the deadline that closes the given phase, if any
func (d Deadlines) NextDeadline(phase Phase) (time.Time, bool) {
	switch phase {
	case PhaseEarlyBird:
		return d.EarlyBird, true
	case PhaseOfficial:
		return d.Official, true
	default:
		return time.Time{}, false
	}
}

// ParsePhase converts a raw string to a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	switch p {
	case PhaseEarlyBird, PhaseOfficial, PhaseClosed:
		return p, nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}
