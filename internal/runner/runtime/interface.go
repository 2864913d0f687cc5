// Package runtime provides the Runtime interface for workflow execution
// backends. The discovery script runs the same way under every backend;
// only the isolation level differs.
package runtime

import (
	"context"
	"io"
)

// Runtime executes one workflow run at a time.
type Runtime interface {
	// Start begins execution and returns a handle for the run.
	Start(ctx context.Context, opts StartOptions) (Handle, error)
}

// StartOptions describes the process to run.
type StartOptions struct {
	// Image names the container image for container backends; the
	// exec backend ignores it.
	Image   string
	Command []string
	Env     map[string]string
	// Dir is the provisioned workspace the command runs in. Container
	// backends mount it at the same path inside the container.
	Dir string
}

// ExitResult captures the terminal state of a run.
type ExitResult struct {
	ExitCode int
	Error    error
}

// Handle represents a running workflow execution.
type Handle interface {
	// Wait blocks until the run completes and returns its exit result.
	Wait(ctx context.Context) (ExitResult, error)

	// Stop forcefully terminates the run.
	Stop(ctx context.Context) error

	// StreamLogs returns a reader over the run's combined stdout/stderr.
	StreamLogs(ctx context.Context) (io.ReadCloser, error)
}
