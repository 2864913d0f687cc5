package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// ExecRuntime runs the workflow as a raw OS process. It is the default
// backend: the provisioner has already isolated the workspace, so a
// container adds little for a single-tenant runner.
type ExecRuntime struct {
	WorkDir string
}

// ExecHandle represents a running process.
type ExecHandle struct {
	cmd  *exec.Cmd
	logs *os.File

	waitOnce sync.Once
	waitErr  error
}

// NewExecRuntime creates a process-based runtime. workDir is the
// fallback directory for runs that carry no workspace of their own.
func NewExecRuntime(workDir string) *ExecRuntime {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "leadrunner", "workspace")
	}
	return &ExecRuntime{WorkDir: workDir}
}

// Start implements Runtime.Start using os/exec.
func (e *ExecRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("command is required")
	}

	dir := opts.Dir
	if dir == "" {
		dir = e.WorkDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir %s: %w", dir, err)
	}

	path, err := exec.LookPath(opts.Command[0])
	if err != nil {
		return nil, fmt.Errorf("command %s not found: %w", opts.Command[0], err)
	}

	// Combined output goes through a pipe so the caller can stream it
	// while the process runs.
	logR, logW, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, opts.Command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = logW
	cmd.Stderr = logW
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if err := cmd.Start(); err != nil {
		logR.Close()
		logW.Close()
		return nil, fmt.Errorf("failed to start %s: %w", opts.Command[0], err)
	}
	// The child holds its own copy of the write end; closing ours lets
	// readers see EOF when the process exits.
	logW.Close()

	return &ExecHandle{cmd: cmd, logs: logR}, nil
}

// Wait blocks until the process exits or the context is cancelled.
// Cancellation kills the process and reports exit code -1.
func (h *ExecHandle) Wait(ctx context.Context) (ExitResult, error) {
	done := make(chan error, 1)
	go func() {
		h.waitOnce.Do(func() { h.waitErr = h.cmd.Wait() })
		done <- h.waitErr
	}()

	select {
	case <-ctx.Done():
		h.cmd.Process.Kill()
		<-done
		return ExitResult{ExitCode: -1, Error: ctx.Err()}, ctx.Err()
	case err := <-done:
		if err == nil {
			return ExitResult{ExitCode: 0}, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ExitResult{ExitCode: exitErr.ExitCode()}, nil
		}
		return ExitResult{ExitCode: -1, Error: err}, nil
	}
}

// Stop terminates the process, trying SIGTERM before SIGKILL.
func (h *ExecHandle) Stop(ctx context.Context) error {
	if h.cmd.Process == nil {
		return nil
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return h.cmd.Process.Kill()
	}

	done := make(chan struct{})
	go func() {
		h.waitOnce.Do(func() { h.waitErr = h.cmd.Wait() })
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return h.cmd.Process.Kill()
	case <-ctx.Done():
		return h.cmd.Process.Kill()
	}
}

// StreamLogs returns the read end of the process's combined output.
func (h *ExecHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	return h.logs, nil
}
