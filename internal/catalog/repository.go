// Package catalog records discovery run history in Postgres. It observes
// from the edge: the connector itself stays stateless across calls.
package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the outcome of a discovery run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run tracks a single discovery call.
type Run struct {
	ID           string     `db:"id"`
	Backend      string     `db:"backend"`
	Bucket       string     `db:"bucket"`
	Prefix       string     `db:"prefix"`
	Recursive    bool       `db:"recursive"`
	Status       RunStatus  `db:"status"`
	BatchCount   int        `db:"batch_count"`
	DurationMS   int64      `db:"duration_ms"`
	ErrorMessage string     `db:"error_message"`
	StartedAt    time.Time  `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}

// NewRun builds a Run in the running state.
func NewRun(backend, bucket, prefix string, recursive bool) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Backend:   backend,
		Bucket:    bucket,
		Prefix:    prefix,
		Recursive: recursive,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Complete marks the run finished with a batch count.
func (r *Run) Complete(batchCount int) {
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.BatchCount = batchCount
	r.DurationMS = now.Sub(r.StartedAt).Milliseconds()
	r.CompletedAt = &now
}

// Fail marks the run failed with the error message.
func (r *Run) Fail(err error) {
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.ErrorMessage = err.Error()
	r.DurationMS = now.Sub(r.StartedAt).Milliseconds()
	r.CompletedAt = &now
}

// Repository handles database operations for run tracking.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun inserts a new run record.
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO discovery_runs (
			id, backend, bucket, prefix, recursive, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.ID, run.Backend, run.Bucket, run.Prefix,
		run.Recursive, run.Status, run.StartedAt,
	)
	return err
}

// UpdateRun records the final state of a run.
func (r *Repository) UpdateRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE discovery_runs
		SET status = $1, batch_count = $2, duration_ms = $3,
		    error_message = $4, completed_at = $5
		WHERE id = $6
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.BatchCount, run.DurationMS,
		run.ErrorMessage, run.CompletedAt, run.ID,
	)
	return err
}

// RecentRuns returns the latest runs, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, backend, bucket, prefix, recursive, status,
		       batch_count, duration_ms, error_message, started_at, completed_at
		FROM discovery_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var errMsg sql.NullString
		if err := rows.Scan(
			&run.ID, &run.Backend, &run.Bucket, &run.Prefix, &run.Recursive,
			&run.Status, &run.BatchCount, &run.DurationMS, &errMsg,
			&run.StartedAt, &run.CompletedAt,
		); err != nil {
			return nil, err
		}
		run.ErrorMessage = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Schema is the DDL for the run history table, applied by the CLI.
const Schema = `
CREATE TABLE IF NOT EXISTS discovery_runs (
	id            UUID PRIMARY KEY,
	backend       TEXT NOT NULL,
	bucket        TEXT NOT NULL,
	prefix        TEXT NOT NULL DEFAULT '',
	recursive     BOOLEAN NOT NULL DEFAULT FALSE,
	status        TEXT NOT NULL,
	batch_count   INTEGER NOT NULL DEFAULT 0,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_discovery_runs_started_at
	ON discovery_runs (started_at DESC);
`
