package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadrunner/internal/observability"
	"leadrunner/internal/provision"
	"leadrunner/internal/runner/runtime"
	"leadrunner/internal/store"
)

// --- fakes ---

type fakeRuns struct {
	mu       sync.Mutex
	created  []*store.Run
	running  []uuid.UUID
	finished []finishCall
}

type finishCall struct {
	id           uuid.UUID
	status       store.RunStatus
	exitCode     *int
	errMsg       *string
	publishedRev *string
}

func (f *fakeRuns) CreateRun(ctx context.Context, tx store.DBTransaction, run *store.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRuns) MarkRunning(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = append(f.running, id)
	return nil
}

func (f *fakeRuns) MarkFinished(ctx context.Context, id uuid.UUID, status store.RunStatus, exitCode *int, errMsg *string, publishedRev *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, finishCall{id, status, exitCode, errMsg, publishedRev})
	return nil
}

func (f *fakeRuns) GetRunByID(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	return nil, nil
}

func (f *fakeRuns) ListRuns(ctx context.Context, workflow string, limit, offset int) ([]store.Run, error) {
	return nil, nil
}

func (f *fakeRuns) lastFinish(t *testing.T) finishCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.finished) == 0 {
		t.Fatal("expected a MarkFinished call")
	}
	return f.finished[len(f.finished)-1]
}

type fakeLock struct{ released bool }

func (l *fakeLock) Release(ctx context.Context) error {
	l.released = true
	return nil
}

type fakeLocker struct {
	held bool
	lock *fakeLock
}

func (f *fakeLocker) TryLockWorkflow(ctx context.Context, workflow string) (store.WorkflowLock, bool, error) {
	if f.held {
		return nil, false, nil
	}
	f.lock = &fakeLock{}
	return f.lock, true, nil
}

type fakeHandle struct {
	exitCode int
	waitErr  error
	blocks   bool
	output   string
	stopped  bool
}

func (h *fakeHandle) Wait(ctx context.Context) (runtime.ExitResult, error) {
	if h.blocks {
		<-ctx.Done()
		return runtime.ExitResult{ExitCode: -1, Error: ctx.Err()}, ctx.Err()
	}
	if h.waitErr != nil {
		return runtime.ExitResult{ExitCode: -1, Error: h.waitErr}, h.waitErr
	}
	return runtime.ExitResult{ExitCode: h.exitCode}, nil
}

func (h *fakeHandle) Stop(ctx context.Context) error {
	h.stopped = true
	return nil
}

func (h *fakeHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(h.output)), nil
}

type fakeRuntime struct {
	handle   *fakeHandle
	startErr error
	lastOpts runtime.StartOptions
}

func (f *fakeRuntime) Start(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
	f.lastOpts = opts
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.handle, nil
}

type fakeProvisioner struct {
	dir string
	err error
}

func (f *fakeProvisioner) Provision(ctx context.Context) (*provision.Workspace, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provision.Workspace{Dir: f.dir, DepsDir: f.dir + "/.deps"}, nil
}

type fakePublisher struct {
	rev     string
	changed bool
	err     error
	delay   time.Duration
	called  bool
}

func (f *fakePublisher) Publish(ctx context.Context) (string, bool, error) {
	f.called = true
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.rev, f.changed, f.err
}

type fakeCollector struct {
	mu       sync.Mutex
	collects []string
}

func (f *fakeCollector) Collect(ctx context.Context, runID uuid.UUID, name, srcPath string) (*store.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collects = append(f.collects, srcPath)
	return &store.Artifact{ID: uuid.New(), RunID: runID, Name: name}, nil
}

func (f *fakeCollector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collects)
}

// --- harness ---

type pipelineFixture struct {
	pipeline  *Pipeline
	runs      *fakeRuns
	locker    *fakeLocker
	rt        *fakeRuntime
	prov      *fakeProvisioner
	pub       *fakePublisher
	collector *fakeCollector
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	// Accept log shipments so the stream goroutine does not error.
	logSink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(logSink.Close)

	metrics, err := observability.NewRunMetrics()
	if err != nil {
		t.Fatalf("NewRunMetrics failed: %v", err)
	}

	f := &pipelineFixture{
		runs:      &fakeRuns{},
		locker:    &fakeLocker{},
		rt:        &fakeRuntime{handle: &fakeHandle{output: "searching\n"}},
		prov:      &fakeProvisioner{dir: t.TempDir()},
		pub:       &fakePublisher{},
		collector: &fakeCollector{},
	}
	f.pipeline = NewPipeline(
		PipelineOptions{
			Workflow:        "lead-discovery",
			Image:           "python:3.11-slim",
			Command:         []string{"python3", "discover_sites.py"},
			RunTimeout:      time.Minute,
			ControllerURL:   logSink.URL,
			LogFile:         "lead_discovery.log",
			CredentialsFile: "credentials.json",
			SerperAPIKey:    "test-key",
			GSheetName:      "Scraped Leads",
		},
		f.runs, f.locker, nil, f.rt, f.prov, f.pub, f.collector,
		metrics, slog.New(slog.NewTextHandler(os.Stderr, nil)),
	)
	return f
}

// --- tests ---

func TestExecute_SuccessWithPublish(t *testing.T) {
	f := newPipelineFixture(t)
	f.pub.rev = strings.Repeat("a", 40)
	f.pub.changed = true

	run, err := f.pipeline.Execute(context.Background(), store.TriggerSchedule)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusSucceeded {
		t.Errorf("expected succeeded, got %s", run.Status)
	}

	fin := f.runs.lastFinish(t)
	if fin.status != store.RunStatusSucceeded {
		t.Errorf("persisted status %s", fin.status)
	}
	if fin.publishedRev == nil || *fin.publishedRev != f.pub.rev {
		t.Errorf("expected published revision to be persisted, got %v", fin.publishedRev)
	}
	if fin.exitCode == nil || *fin.exitCode != 0 {
		t.Errorf("expected exit code 0, got %v", fin.exitCode)
	}
	if !f.locker.lock.released {
		t.Error("workflow lock was not released")
	}
	if f.collector.count() != 0 {
		t.Error("succeeded run must not collect diagnostics")
	}
}

func TestExecute_SuccessUnchangedIsNoOpPublish(t *testing.T) {
	f := newPipelineFixture(t)
	f.pub.changed = false

	run, err := f.pipeline.Execute(context.Background(), store.TriggerManual)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusSucceeded {
		t.Errorf("expected succeeded, got %s", run.Status)
	}

	fin := f.runs.lastFinish(t)
	if fin.publishedRev != nil {
		t.Errorf("expected no published revision, got %v", *fin.publishedRev)
	}
	if !f.pub.called {
		t.Error("expected the publisher to run")
	}
}

func TestExecute_NonZeroExitCollectsLog(t *testing.T) {
	f := newPipelineFixture(t)
	f.rt.handle.exitCode = 3

	run, err := f.pipeline.Execute(context.Background(), store.TriggerSchedule)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusFailed {
		t.Errorf("expected failed, got %s", run.Status)
	}

	fin := f.runs.lastFinish(t)
	if fin.exitCode == nil || *fin.exitCode != 3 {
		t.Errorf("expected exit code 3, got %v", fin.exitCode)
	}
	if f.collector.count() != 1 {
		t.Fatalf("expected 1 collected artifact, got %d", f.collector.count())
	}
	if !strings.HasSuffix(f.collector.collects[0], "lead_discovery.log") {
		t.Errorf("unexpected collected path %s", f.collector.collects[0])
	}
	if f.pub.called {
		t.Error("failed run must not publish")
	}
	if !f.locker.lock.released {
		t.Error("workflow lock was not released")
	}
}

func TestExecute_ProvisionFailureSkipsCollect(t *testing.T) {
	f := newPipelineFixture(t)
	f.prov.err = fmt.Errorf("clone failed")

	run, err := f.pipeline.Execute(context.Background(), store.TriggerSchedule)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusFailed {
		t.Errorf("expected failed, got %s", run.Status)
	}

	fin := f.runs.lastFinish(t)
	if fin.errMsg == nil || !strings.Contains(*fin.errMsg, "clone failed") {
		t.Errorf("expected provision error message, got %v", fin.errMsg)
	}
	if f.collector.count() != 0 {
		t.Error("provision failure has no workflow log to collect")
	}
}

func TestExecute_LockHeldRecordsSkipped(t *testing.T) {
	f := newPipelineFixture(t)
	f.locker.held = true

	run, err := f.pipeline.Execute(context.Background(), store.TriggerManual)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusSkipped {
		t.Errorf("expected skipped, got %s", run.Status)
	}

	if len(f.runs.running) != 0 {
		t.Error("skipped run must never be marked running")
	}
	if len(f.runs.finished) != 0 {
		t.Error("skipped run is terminal at creation")
	}
}

func TestExecute_TimeoutStopsAndCollects(t *testing.T) {
	f := newPipelineFixture(t)
	f.pipeline.opts.RunTimeout = 50 * time.Millisecond
	f.rt.handle.blocks = true

	run, err := f.pipeline.Execute(context.Background(), store.TriggerSchedule)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusTimedOut {
		t.Errorf("expected timed_out, got %s", run.Status)
	}

	if !f.rt.handle.stopped {
		t.Error("expected the handle to be stopped on timeout")
	}
	if f.collector.count() != 1 {
		t.Errorf("expected diagnostics collection on timeout, got %d", f.collector.count())
	}
	fin := f.runs.lastFinish(t)
	if fin.errMsg == nil || !strings.Contains(*fin.errMsg, "timed out") {
		t.Errorf("expected timeout message, got %v", fin.errMsg)
	}
}

func TestExecute_PublishFailureFailsRun(t *testing.T) {
	f := newPipelineFixture(t)
	f.pub.err = fmt.Errorf("push failed after 3 attempts")

	run, err := f.pipeline.Execute(context.Background(), store.TriggerSchedule)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusFailed {
		t.Errorf("expected failed, got %s", run.Status)
	}

	fin := f.runs.lastFinish(t)
	if fin.errMsg == nil || !strings.Contains(*fin.errMsg, "push failed") {
		t.Errorf("expected publish error message, got %v", fin.errMsg)
	}
	if f.collector.count() != 1 {
		t.Error("publish failure should still collect diagnostics")
	}
}

func TestExecute_StampsCreatedAt(t *testing.T) {
	f := newPipelineFixture(t)

	if _, err := f.pipeline.Execute(context.Background(), store.TriggerSchedule); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(f.runs.created) != 1 {
		t.Fatalf("expected 1 created run, got %d", len(f.runs.created))
	}
	if f.runs.created[0].CreatedAt.IsZero() {
		t.Error("run must carry a creation timestamp")
	}

	// Skipped runs are created directly in their terminal state and
	// need the timestamp just the same for run-history ordering.
	f.locker.held = true
	run, err := f.pipeline.Execute(context.Background(), store.TriggerManual)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusSkipped {
		t.Fatalf("expected skipped, got %s", run.Status)
	}
	if run.CreatedAt.IsZero() {
		t.Error("skipped run must carry a creation timestamp")
	}
}

func TestExecute_PublishOutlivesRunCeiling(t *testing.T) {
	f := newPipelineFixture(t)
	f.pipeline.opts.RunTimeout = 50 * time.Millisecond
	f.pub.delay = 150 * time.Millisecond
	f.pub.rev = strings.Repeat("b", 40)
	f.pub.changed = true

	run, err := f.pipeline.Execute(context.Background(), store.TriggerSchedule)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if run.Status != store.RunStatusSucceeded {
		t.Errorf("expected succeeded, got %s", run.Status)
	}

	fin := f.runs.lastFinish(t)
	if fin.publishedRev == nil || *fin.publishedRev != f.pub.rev {
		t.Errorf("expected the slow publish to land, got %v", fin.publishedRev)
	}
	if f.collector.count() != 0 {
		t.Error("successful publish must not collect diagnostics")
	}
}

func TestExecute_PassesWorkflowEnvironment(t *testing.T) {
	f := newPipelineFixture(t)

	if _, err := f.pipeline.Execute(context.Background(), store.TriggerSchedule); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	env := f.rt.lastOpts.Env
	if env["SERPER_API_KEY"] != "test-key" {
		t.Errorf("SERPER_API_KEY not passed, got %q", env["SERPER_API_KEY"])
	}
	if env["GSHEET_NAME"] != "Scraped Leads" {
		t.Errorf("GSHEET_NAME not passed, got %q", env["GSHEET_NAME"])
	}
	if env["PYTHONPATH"] == "" {
		t.Error("PYTHONPATH must point at the installed dependencies")
	}
	if f.rt.lastOpts.Dir != f.prov.dir {
		t.Errorf("workflow must run in the provisioned workspace, got %s", f.rt.lastOpts.Dir)
	}
}
