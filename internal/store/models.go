// Package store contains the database layer for leadrunner.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Trigger identifies what caused a run to start. Both variants are
// equivalent once fired; downstream behavior never branches on it.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// RunStatus represents the state of a workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	// RunStatusTimedOut means the 60-minute wall-clock ceiling was hit.
	// It is terminal and counts as failure for the publish/collect branch.
	RunStatusTimedOut RunStatus = "timed_out"
	// RunStatusSkipped means a trigger fired while another run held the
	// workflow lock. No work was performed.
	RunStatusSkipped RunStatus = "skipped"
)

// Run represents a single end-to-end run of the workflow:
// provision, execute, then publish or collect diagnostics.
type Run struct {
	ID           uuid.UUID
	Workflow     string
	Trigger      Trigger
	Status       RunStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ExitCode     *int
	ErrorMessage *string
	// PublishedRev is the commit hash pushed by the result publisher,
	// set only when the run changed the result file.
	PublishedRev *string
	CreatedAt    time.Time
}

// LogEntry is a batch of log lines shipped by the runner during a run.
type LogEntry struct {
	ID        int64
	RunID     uuid.UUID
	Content   string
	CreatedAt time.Time
}

// Artifact is a file retrievable after a run completes, e.g. the
// lead-discovery log collected on failure.
type Artifact struct {
	ID        uuid.UUID
	RunID     uuid.UUID
	Name      string
	Path      string
	SizeBytes int64
	Digest    string
	CreatedAt time.Time
}

// Dispatch is a pending trigger event waiting to be claimed by the runner.
type Dispatch struct {
	ID          int64
	Workflow    string
	Trigger     Trigger
	RequestedBy string
	CreatedAt   time.Time
}
