package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sfp-labs/fellowship-portal/internal/models"
)

// ErrAttemptNotFound is returned when an update matches no attempt.
var ErrAttemptNotFound = errors.New("attempt not found")

// pgxPool is the subset of *pgxpool.Pool the repository uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool pgxPool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// RecordAttempt stores a new submission attempt
func (r *PostgresRepository) RecordAttempt(ctx context.Context, a *models.SubmissionAttempt) error {
	payloadJSON, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if a.Payload == nil {
		payloadJSON = []byte("{}")
	}

	query := `
		INSERT INTO submission_attempts (id, form_type, email, full_name, outcome, upstream_status, error, duration_ms, created_at, resolved_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.pool.Exec(ctx, query,
		a.ID,
		a.FormType,
		nullString(a.Email),
		nullString(a.FullName),
		string(a.Outcome),
		nullInt(a.UpstreamStatus),
		nullString(a.Error),
		a.DurationMs,
		a.CreatedAt,
		nullTime(a.ResolvedAt),
		payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	return nil
}

// ResolveLateOutcome stores what the upstream eventually answered for an
// attempt that was reported as an optimistic success
func (r *PostgresRepository) ResolveLateOutcome(ctx context.Context, id string, outcome models.Outcome, status int, errMsg string) error {
	query := `
		UPDATE submission_attempts
		SET late_outcome = $2, late_status = $3, error = COALESCE($4, error), resolved_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, string(outcome), nullInt(status), nullString(errMsg))
	if err != nil {
		return fmt.Errorf("failed to resolve attempt: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAttemptNotFound, id)
	}

	return nil
}

const attemptColumns = `id, form_type, email, full_name, outcome, upstream_status, error, duration_ms, late_outcome, late_status, created_at, resolved_at, payload`

// GetAttempt retrieves an attempt by ID
func (r *PostgresRepository) GetAttempt(ctx context.Context, id string) (*models.SubmissionAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM submission_attempts WHERE id = $1`

	a, err := scanAttempt(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	return a, nil
}

// ListAttempts retrieves attempts matching the filters, newest first
func (r *PostgresRepository) ListAttempts(ctx context.Context, filters models.AttemptFilters) ([]*models.SubmissionAttempt, error) {
	query, args := listAttemptsQuery(filters)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.SubmissionAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

// listAttemptsQuery builds the filtered SELECT with numbered placeholders.
func listAttemptsQuery(filters models.AttemptFilters) (string, []any) {
	query := `SELECT ` + attemptColumns + ` FROM submission_attempts WHERE 1=1`
	args := make([]any, 0)
	argNum := 1

	if filters.Outcome != "" {
		query += fmt.Sprintf(" AND outcome = $%d", argNum)
		args = append(args, string(filters.Outcome))
		argNum++
	}

	if filters.FormType != "" {
		query += fmt.Sprintf(" AND form_type = $%d", argNum)
		args = append(args, filters.FormType)
		argNum++
	}

	if filters.Email != "" {
		query += fmt.Sprintf(" AND email = $%d", argNum)
		args = append(args, filters.Email)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	return query, args
}

// PruneAttempts deletes attempts created before the given time
func (r *PostgresRepository) PruneAttempts(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM submission_attempts WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanAttempt(row pgx.Row) (*models.SubmissionAttempt, error) {
	var a models.SubmissionAttempt
	var outcome string
	var email, fullName, errMsg, lateOutcome sql.NullString
	var upstreamStatus, lateStatus sql.NullInt32
	var resolvedAt sql.NullTime
	var payloadJSON []byte

	err := row.Scan(
		&a.ID,
		&a.FormType,
		&email,
		&fullName,
		&outcome,
		&upstreamStatus,
		&errMsg,
		&a.DurationMs,
		&lateOutcome,
		&lateStatus,
		&a.CreatedAt,
		&resolvedAt,
		&payloadJSON,
	)
	if err != nil {
		return nil, err
	}

	a.Outcome = models.Outcome(outcome)
	a.Email = email.String
	a.FullName = fullName.String
	a.Error = errMsg.String
	a.UpstreamStatus = int(upstreamStatus.Int32)
	a.LateOutcome = models.Outcome(lateOutcome.String)
	a.LateStatus = int(lateStatus.Int32)

	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &a.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &a, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int) sql.NullInt32 {
	if n == 0 {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(n), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
