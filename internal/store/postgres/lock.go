package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"leadrunner/internal/store"
)

// workflowLock holds a session-level advisory lock. Advisory locks are
// bound to the connection that took them, so the lock pins a dedicated
// connection from the pool until released.
type workflowLock struct {
	conn     *sql.Conn
	workflow string
}

// TryLockWorkflow attempts to take the run-level advisory lock for a
// workflow. It returns (nil, false, nil) when another run holds it,
// which callers record as a skipped run rather than blocking.
func (s *Store) TryLockWorkflow(ctx context.Context, workflow string) (store.WorkflowLock, bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}

	var acquired bool
	err = conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, workflow).Scan(&acquired)
	if err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to take workflow lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	return &workflowLock{conn: conn, workflow: workflow}, true, nil
}

// Release frees the advisory lock and returns the connection to the pool.
func (l *workflowLock) Release(ctx context.Context) error {
	defer l.conn.Close()

	var released bool
	err := l.conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, l.workflow).Scan(&released)
	if err != nil {
		return fmt.Errorf("failed to release workflow lock: %w", err)
	}
	if !released {
		return fmt.Errorf("workflow lock for %q was not held", l.workflow)
	}

	return nil
}
