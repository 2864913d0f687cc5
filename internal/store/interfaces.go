package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// RunStore handles the persistence of workflow run records.
type RunStore interface {
	// CreateRun inserts the initial state of a run.
	CreateRun(ctx context.Context, tx DBTransaction, run *Run) error

	// MarkRunning stamps started_at and flips the status to running.
	MarkRunning(ctx context.Context, id uuid.UUID) error

	// MarkFinished records the terminal status of a run. exitCode,
	// errMsg and publishedRev may be nil depending on the outcome.
	MarkFinished(ctx context.Context, id uuid.UUID, status RunStatus, exitCode *int, errMsg *string, publishedRev *string) error

	// GetRunByID returns a run by its ID.
	GetRunByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// ListRuns returns runs for a workflow, most recent first.
	ListRuns(ctx context.Context, workflow string, limit, offset int) ([]Run, error)
}

// LogStore persists log batches shipped by the runner.
type LogStore interface {
	AddLogEntry(ctx context.Context, runID uuid.UUID, content string) error
	GetRunLogs(ctx context.Context, runID uuid.UUID, afterID int64, limit int) ([]LogEntry, error)
}

// ArtifactRecords indexes stored artifacts. The artifact bytes live on
// the filesystem; these rows carry name, size and digest per run.
type ArtifactRecords interface {
	CreateArtifact(ctx context.Context, a *Artifact) error
	GetArtifactByID(ctx context.Context, id uuid.UUID) (*Artifact, error)
	ListArtifactsByRun(ctx context.Context, runID uuid.UUID) ([]Artifact, error)
}

// DispatchQueue holds pending trigger events. Implementations must use
// SELECT ... FOR UPDATE SKIP LOCKED semantics so a claim is atomic.
type DispatchQueue interface {
	// EnqueueDispatch records a trigger event and returns its queue id.
	EnqueueDispatch(ctx context.Context, tx DBTransaction, workflow string, trigger Trigger, requestedBy string) (int64, error)

	// DequeueDispatches claims up to 'limit' pending dispatches atomically.
	// Returns nil slice if the queue is empty.
	DequeueDispatches(ctx context.Context, workflow string, limit int) ([]Dispatch, error)

	// CountDispatches tracks count of pending items.
	CountDispatches(ctx context.Context, workflow string) (int64, error)
}

// Locker provides run-level mutual exclusion keyed by workflow name,
// so overlapping triggers can never race the result publisher.
type Locker interface {
	// TryLockWorkflow returns (lock, true) when the advisory lock was
	// acquired, or (nil, false) when another run holds it.
	TryLockWorkflow(ctx context.Context, workflow string) (WorkflowLock, bool, error)
}

// WorkflowLock is a held run lock. Release must be called on all paths.
type WorkflowLock interface {
	Release(ctx context.Context) error
}
