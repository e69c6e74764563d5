package models

import (
	"time"
)

// Outcome is how a relayed submission was resolved
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"            // Upstream answered 200 or a redirect
	OutcomeOptimisticSuccess Outcome = "optimistic_success" // Upstream was still working when the timer fired
	OutcomeFailure           Outcome = "failure"            // Network error or unexpected status
)

// IsSuccess returns true for confirmed and optimistic successes alike
func (o Outcome) IsSuccess() bool {
	return o == OutcomeSuccess || o == OutcomeOptimisticSuccess
}

// SubmissionAttempt is one relay of an application to the upstream script
type SubmissionAttempt struct {
	ID             string         `json:"id"`
	FormType       string         `json:"form_type"`
	Email          string         `json:"email,omitempty"`
	FullName       string         `json:"full_name,omitempty"`
	Outcome        Outcome        `json:"outcome"`
	UpstreamStatus int            `json:"upstream_status,omitempty"`
	Error          string         `json:"error,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	LateOutcome    Outcome        `json:"late_outcome,omitempty"`
	LateStatus     int            `json:"late_status,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// IsOptimistic returns true if success was assumed rather than confirmed
func (a *SubmissionAttempt) IsOptimistic() bool {
	return a.Outcome == OutcomeOptimisticSuccess
}

// AwaitingLateOutcome returns true while an optimistic attempt has not heard back
func (a *SubmissionAttempt) AwaitingLateOutcome() bool {
	return a.IsOptimistic() && a.ResolvedAt == nil
}

// AttemptFilters holds filters for listing submission attempts
type AttemptFilters struct {
	Outcome  Outcome
	FormType string
	Email    string
	Limit    int
	Offset   int
}
