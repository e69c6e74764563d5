package storage

import (
	"context"
	"time"

	"github.com/sfp-labs/fellowship-portal/internal/models"
)

// Repository defines the interface for the submission ledger
type Repository interface {
	// Attempts
	RecordAttempt(ctx context.Context, a *models.SubmissionAttempt) error
	ResolveLateOutcome(ctx context.Context, id string, outcome models.Outcome, status int, errMsg string) error
	GetAttempt(ctx context.Context, id string) (*models.SubmissionAttempt, error)
	ListAttempts(ctx context.Context, filters models.AttemptFilters) ([]*models.SubmissionAttempt, error)
	PruneAttempts(ctx context.Context, before time.Time) (int64, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
