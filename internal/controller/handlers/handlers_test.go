package handlers

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"leadrunner/internal/store"
)

// Mock transaction
type mockTx struct{}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *mockTx) Commit() error { return nil }

func (m *mockTx) Rollback() error { return nil }

// Mock Store
type mockStore struct {
	beginTxErr error
	pingErr    error

	// Run hooks
	createRunErr    error
	markRunningErr  error
	markFinishedErr error
	getRunResp      *store.Run
	getRunErr       error
	listRunsResp    []store.Run
	listRunsErr     error

	// Log hooks
	addLogEntryErr error
	getRunLogsResp []store.LogEntry
	getRunLogsErr  error

	// Artifact hooks
	createArtifactErr error
	getArtifactResp   *store.Artifact
	getArtifactErr    error
	listArtifactsResp []store.Artifact
	listArtifactsErr  error

	// Queue hooks
	enqueueResp int64
	enqueueErr  error

	// Spies (to verify arguments passed by handlers)
	capturedAfterID     int64
	capturedLimit       int
	capturedOffset      int
	capturedLogContent  string
	capturedTrigger     store.Trigger
	capturedRequestedBy string
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) {
	if m.beginTxErr != nil {
		return nil, m.beginTxErr
	}
	return &mockTx{}, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockStore) CreateRun(ctx context.Context, tx store.DBTransaction, run *store.Run) error {
	return m.createRunErr
}

func (m *mockStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return m.markRunningErr
}

func (m *mockStore) MarkFinished(ctx context.Context, id uuid.UUID, status store.RunStatus, exitCode *int, errMsg *string, publishedRev *string) error {
	return m.markFinishedErr
}

func (m *mockStore) GetRunByID(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	return m.getRunResp, m.getRunErr
}

func (m *mockStore) ListRuns(ctx context.Context, workflow string, limit, offset int) ([]store.Run, error) {
	m.capturedLimit = limit
	m.capturedOffset = offset
	return m.listRunsResp, m.listRunsErr
}

func (m *mockStore) AddLogEntry(ctx context.Context, runID uuid.UUID, content string) error {
	m.capturedLogContent = content
	return m.addLogEntryErr
}

func (m *mockStore) GetRunLogs(ctx context.Context, runID uuid.UUID, afterID int64, limit int) ([]store.LogEntry, error) {
	m.capturedAfterID = afterID
	m.capturedLimit = limit
	return m.getRunLogsResp, m.getRunLogsErr
}

func (m *mockStore) CreateArtifact(ctx context.Context, a *store.Artifact) error {
	return m.createArtifactErr
}

func (m *mockStore) GetArtifactByID(ctx context.Context, id uuid.UUID) (*store.Artifact, error) {
	return m.getArtifactResp, m.getArtifactErr
}

func (m *mockStore) ListArtifactsByRun(ctx context.Context, runID uuid.UUID) ([]store.Artifact, error) {
	return m.listArtifactsResp, m.listArtifactsErr
}

func (m *mockStore) EnqueueDispatch(ctx context.Context, tx store.DBTransaction, workflow string, trigger store.Trigger, requestedBy string) (int64, error) {
	m.capturedTrigger = trigger
	m.capturedRequestedBy = requestedBy
	return m.enqueueResp, m.enqueueErr
}

func (m *mockStore) DequeueDispatches(ctx context.Context, workflow string, limit int) ([]store.Dispatch, error) {
	return nil, nil
}

func (m *mockStore) CountDispatches(ctx context.Context, workflow string) (int64, error) {
	return 0, nil
}
