package postgres

import (
	"context"
	"fmt"
	"time"

	"leadrunner/internal/store"

	"github.com/google/uuid"
)

// CreateRun inserts the initial state of a run.
func (s *Store) CreateRun(ctx context.Context, tx store.DBTransaction, run *store.Run) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO runs (id, workflow, trigger, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := executor.ExecContext(ctx, query,
		run.ID, run.Workflow, run.Trigger, run.Status, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}

	return nil
}

// MarkRunning stamps started_at and flips the status to running.
func (s *Store) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE runs SET status = $1, started_at = $2 WHERE id = $3`

	res, err := s.db.ExecContext(ctx, query, store.RunStatusRunning, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark run %s running: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", id)
	}

	return nil
}

// MarkFinished records the terminal status of a run.
func (s *Store) MarkFinished(ctx context.Context, id uuid.UUID, status store.RunStatus, exitCode *int, errMsg *string, publishedRev *string) error {
	query := `
		UPDATE runs
		SET status = $1, completed_at = $2, exit_code = $3, error_message = $4, published_rev = $5
		WHERE id = $6
	`
	res, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), exitCode, errMsg, publishedRev, id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", id)
	}

	return nil
}

// GetRunByID returns a run by its ID.
func (s *Store) GetRunByID(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	query := `
		SELECT id, workflow, trigger, status, started_at, completed_at, exit_code, error_message, published_rev, created_at
		FROM runs
		WHERE id = $1
	`

	var run store.Run
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Workflow, &run.Trigger, &run.Status,
		&run.StartedAt, &run.CompletedAt, &run.ExitCode,
		&run.ErrorMessage, &run.PublishedRev, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// ListRuns returns runs for a workflow, most recent first.
func (s *Store) ListRuns(ctx context.Context, workflow string, limit, offset int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, workflow, trigger, status, started_at, completed_at, exit_code, error_message, published_rev, created_at
		FROM runs
		WHERE workflow = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, workflow, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var run store.Run
		if err := rows.Scan(
			&run.ID, &run.Workflow, &run.Trigger, &run.Status,
			&run.StartedAt, &run.CompletedAt, &run.ExitCode,
			&run.ErrorMessage, &run.PublishedRev, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
