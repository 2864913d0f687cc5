// Package runner contains the runner-side logic: the dispatch loop and
// the per-run pipeline of provision, execute, publish and collect.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"leadrunner/internal/observability"
	"leadrunner/internal/provision"
	"leadrunner/internal/runner/runtime"
	"leadrunner/internal/secrets"
	"leadrunner/internal/store"
	"leadrunner/pkg/api"
)

// WorkspaceProvisioner prepares the checkout, dependencies and
// credentials for a run.
type WorkspaceProvisioner interface {
	Provision(ctx context.Context) (*provision.Workspace, error)
}

// ResultPublisher pushes the result file upstream when it changed.
type ResultPublisher interface {
	Publish(ctx context.Context) (rev string, changed bool, err error)
}

// DiagnosticsCollector stores failure artifacts.
type DiagnosticsCollector interface {
	Collect(ctx context.Context, runID uuid.UUID, name, srcPath string) (*store.Artifact, error)
}

// PipelineOptions configures one workflow's run pipeline.
type PipelineOptions struct {
	Workflow      string
	Image         string
	Command       []string
	RunTimeout    time.Duration
	ControllerURL string

	// LogFile is the diagnostics file the workflow writes, relative to
	// the workspace. It is collected only when the run fails.
	LogFile string
	// CredentialsFile is the materialized key file, relative to the
	// workspace. Removed when the run finishes, on every path.
	CredentialsFile string

	// Env passed through to the workflow process.
	SerperAPIKey string
	GSheetName   string
}

// publishTimeout bounds the publish step, which runs outside the run
// ceiling: by the time it starts the result already exists.
const publishTimeout = 5 * time.Minute

// Pipeline executes one run end to end and records its state.
type Pipeline struct {
	opts PipelineOptions

	runs        store.RunStore
	locker      store.Locker
	db          store.DBTransaction
	runtime     runtime.Runtime
	provisioner WorkspaceProvisioner
	publisher   ResultPublisher
	collector   DiagnosticsCollector
	metrics     *observability.RunMetrics
	log         *slog.Logger
	httpClient  *http.Client
}

// NewPipeline wires a run pipeline.
func NewPipeline(
	opts PipelineOptions,
	runs store.RunStore,
	locker store.Locker,
	db store.DBTransaction,
	rt runtime.Runtime,
	prov WorkspaceProvisioner,
	pub ResultPublisher,
	coll DiagnosticsCollector,
	metrics *observability.RunMetrics,
	log *slog.Logger,
) *Pipeline {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 60 * time.Minute
	}
	opts.ControllerURL = strings.TrimSuffix(opts.ControllerURL, "/")

	return &Pipeline{
		opts:        opts,
		runs:        runs,
		locker:      locker,
		db:          db,
		runtime:     rt,
		provisioner: prov,
		publisher:   pub,
		collector:   coll,
		metrics:     metrics,
		log:         log,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Execute runs the workflow once for the given trigger. Schedule and
// manual triggers take the identical path from here on. The returned
// run carries the terminal state that was persisted.
func (p *Pipeline) Execute(ctx context.Context, trigger store.Trigger) (*store.Run, error) {
	lock, acquired, err := p.locker.TryLockWorkflow(ctx, p.opts.Workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire workflow lock: %w", err)
	}
	if !acquired {
		return p.recordSkipped(ctx, trigger)
	}
	defer lock.Release(context.Background())

	run := &store.Run{
		ID:        uuid.New(),
		Workflow:  p.opts.Workflow,
		Trigger:   trigger,
		Status:    store.RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.runs.CreateRun(ctx, p.db, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	tracer := otel.Tracer("runner")
	spanCtx, span := tracer.Start(ctx, "workflow_run",
		trace.WithAttributes(
			attribute.String("run.id", run.ID.String()),
			attribute.String("run.workflow", p.opts.Workflow),
			attribute.String("run.trigger", string(trigger)),
		),
	)
	defer span.End()

	started := time.Now()
	// The timeout covers provisioning and execution together; a hung
	// clone or pip install counts against the same ceiling.
	runCtx, cancel := context.WithTimeout(spanCtx, p.opts.RunTimeout)
	defer cancel()

	if err := p.runs.MarkRunning(ctx, run.ID); err != nil {
		return nil, err
	}
	run.Status = store.RunStatusRunning
	p.log.Info("run started", "run_id", run.ID, "trigger", trigger)

	status := p.execute(runCtx, spanCtx, run)

	elapsed := time.Since(started)
	p.metrics.RecordRun(spanCtx, string(trigger), string(status), elapsed)
	span.SetAttributes(attribute.String("run.status", string(status)))
	p.log.Info("run finished", "run_id", run.ID, "status", status, "elapsed", elapsed)

	run.Status = status
	return run, nil
}

// execute performs the provision/execute/publish-or-collect sequence
// and persists the terminal state. It returns the terminal status.
func (p *Pipeline) execute(runCtx, ctx context.Context, run *store.Run) store.RunStatus {
	ws, err := p.provisioner.Provision(runCtx)
	if err != nil {
		// Nothing ran, so there is no workflow log to collect.
		msg := fmt.Sprintf("provision: %v", err)
		p.markFinished(ctx, run, store.RunStatusFailed, nil, &msg, nil)
		return store.RunStatusFailed
	}
	defer secrets.Remove(filepath.Join(ws.Dir, p.opts.CredentialsFile))

	logPath := filepath.Join(ws.Dir, p.opts.LogFile)

	handle, err := p.runtime.Start(runCtx, runtime.StartOptions{
		Image:   p.opts.Image,
		Command: p.opts.Command,
		Env:     p.runEnv(run, ws),
		Dir:     ws.Dir,
	})
	if err != nil {
		return p.failAt(ctx, run, logPath, nil, fmt.Errorf("start workflow: %w", err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.streamLogs(ctx, run.ID, handle)
	}()

	result, waitErr := handle.Wait(runCtx)
	wg.Wait()

	if waitErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			handle.Stop(stopCtx)

			p.collect(ctx, run.ID, logPath)
			msg := fmt.Sprintf("run timed out after %v", p.opts.RunTimeout)
			p.markFinished(ctx, run, store.RunStatusTimedOut, nil, &msg, nil)
			return store.RunStatusTimedOut
		}
		return p.failAt(ctx, run, logPath, nil, fmt.Errorf("wait: %w", waitErr))
	}

	if result.ExitCode != 0 {
		err := fmt.Errorf("workflow exited with code %d", result.ExitCode)
		if result.Error != nil {
			err = result.Error
		}
		return p.failAt(ctx, run, logPath, &result.ExitCode, err)
	}

	// The workflow already produced its result; abandoning the publish
	// because the run ceiling expired would discard finished work. It
	// runs outside runCtx with its own bound.
	pubCtx, pubCancel := context.WithTimeout(ctx, publishTimeout)
	defer pubCancel()
	rev, changed, err := p.publisher.Publish(pubCtx)
	if err != nil {
		return p.failAt(ctx, run, logPath, &result.ExitCode, fmt.Errorf("publish: %w", err))
	}

	var publishedRev *string
	if changed {
		publishedRev = &rev
		p.log.Info("result published", "run_id", run.ID, "revision", rev)
	} else {
		p.log.Info("no changes to commit", "run_id", run.ID)
		p.metrics.RecordPublishNoOp(ctx)
	}

	p.markFinished(ctx, run, store.RunStatusSucceeded, &result.ExitCode, nil, publishedRev)
	return store.RunStatusSucceeded
}

func (p *Pipeline) runEnv(run *store.Run, ws *provision.Workspace) map[string]string {
	return map[string]string{
		"SERPER_API_KEY":    p.opts.SerperAPIKey,
		"GSHEET_NAME":       p.opts.GSheetName,
		"PYTHONPATH":        ws.DepsDir,
		"LEADRUNNER_RUN_ID": run.ID.String(),
	}
}

// recordSkipped persists a run row for a trigger that found the
// workflow lock held, so the overlap is visible in run history.
func (p *Pipeline) recordSkipped(ctx context.Context, trigger store.Trigger) (*store.Run, error) {
	run := &store.Run{
		ID:        uuid.New(),
		Workflow:  p.opts.Workflow,
		Trigger:   trigger,
		Status:    store.RunStatusSkipped,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.runs.CreateRun(ctx, p.db, run); err != nil {
		return nil, fmt.Errorf("failed to record skipped run: %w", err)
	}
	p.metrics.RecordSkipped(ctx, string(trigger))
	p.log.Info("trigger skipped, another run holds the workflow lock", "trigger", trigger)
	return run, nil
}

func (p *Pipeline) failAt(ctx context.Context, run *store.Run, logPath string, exitCode *int, cause error) store.RunStatus {
	p.collect(ctx, run.ID, logPath)
	msg := cause.Error()
	p.markFinished(ctx, run, store.RunStatusFailed, exitCode, &msg, nil)
	return store.RunStatusFailed
}

// collect stores the workflow log as a failure artifact. Collection is
// best effort; the run outcome is already decided.
func (p *Pipeline) collect(ctx context.Context, runID uuid.UUID, logPath string) {
	if _, err := p.collector.Collect(ctx, runID, p.opts.LogFile, logPath); err != nil {
		p.log.Error("failed to collect diagnostics", "run_id", runID, "error", err)
	}
}

func (p *Pipeline) markFinished(ctx context.Context, run *store.Run, status store.RunStatus, exitCode *int, errMsg *string, publishedRev *string) {
	if err := p.runs.MarkFinished(ctx, run.ID, status, exitCode, errMsg, publishedRev); err != nil {
		p.log.Error("failed to persist run state", "run_id", run.ID, "status", status, "error", err)
	}
	run.ExitCode = exitCode
	run.ErrorMessage = errMsg
	run.PublishedRev = publishedRev
}

// streamLogs ships the workflow's output to the controller in batches.
func (p *Pipeline) streamLogs(ctx context.Context, runID uuid.UUID, handle runtime.Handle) {
	const (
		logBatchSize     = 100         // Max lines per batch
		logFlushInterval = time.Second // Flush at least every second
	)

	rc, err := handle.StreamLogs(ctx)
	if err != nil {
		p.log.Error("failed to get log stream", "run_id", runID, "error", err)
		return
	}
	defer rc.Close()

	var batch []string
	flushTicker := time.NewTicker(logFlushInterval)
	defer flushTicker.Stop()

	lineChan := make(chan string, 100)

	go func() {
		defer close(lineChan)
		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			line := scanner.Text()
			// Postgres rejects \x00 in text columns
			if strings.Contains(line, "\x00") {
				line = strings.ReplaceAll(line, "\x00", "")
			}
			select {
			case lineChan <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		content := strings.Join(batch, "\n")
		if err := p.sendLogs(ctx, runID, content); err != nil {
			p.log.Error("failed to ship logs", "run_id", runID, "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case line, ok := <-lineChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, line)
			if len(batch) >= logBatchSize {
				flush()
			}
		case <-flushTicker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

func (p *Pipeline) sendLogs(ctx context.Context, runID uuid.UUID, content string) error {
	url := fmt.Sprintf("%s/internal/runs/%s/logs", p.opts.ControllerURL, runID)

	body, _ := json.Marshal(api.AddLogRequest{Content: content})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	return nil
}
