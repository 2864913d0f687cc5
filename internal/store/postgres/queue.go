package postgres

import (
	"context"
	"fmt"

	"leadrunner/internal/store"

	"github.com/lib/pq"
)

// EnqueueDispatch records a trigger event and returns its queue id.
func (s *Store) EnqueueDispatch(ctx context.Context, tx store.DBTransaction, workflow string, trigger store.Trigger, requestedBy string) (int64, error) {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO dispatch_queue (workflow, trigger, requested_by)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	err := executor.QueryRowContext(ctx, query, workflow, trigger, requestedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue dispatch for %s: %w", workflow, err)
	}

	return id, nil
}

// DequeueDispatches claims up to 'limit' pending dispatches atomically
// using SELECT ... FOR UPDATE SKIP LOCKED. Claimed rows are deleted in
// the same transaction; a dispatch is consumed exactly once.
func (s *Store) DequeueDispatches(ctx context.Context, workflow string, limit int) ([]store.Dispatch, error) {
	if limit <= 0 {
		limit = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT id, workflow, trigger, requested_by, created_at
		FROM dispatch_queue
		WHERE workflow = $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`

	rows, err := tx.QueryContext(ctx, selectQuery, workflow, limit)
	if err != nil {
		return nil, fmt.Errorf("dispatch dequeue query failed: %w", err)
	}
	defer rows.Close()

	var items []store.Dispatch
	var ids []int64
	for rows.Next() {
		var d store.Dispatch
		if err := rows.Scan(&d.ID, &d.Workflow, &d.Trigger, &d.RequestedBy, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispatch dequeue scan failed: %w", err)
		}
		items = append(items, d)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispatch dequeue rows error: %w", err)
	}

	if len(items) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dispatch_queue WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("dispatch delete failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("dispatch dequeue commit failed: %w", err)
	}

	return items, nil
}

// CountDispatches tracks count of pending items.
func (s *Store) CountDispatches(ctx context.Context, workflow string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dispatch_queue WHERE workflow = $1`, workflow,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dispatches: %w", err)
	}
	return count, nil
}
