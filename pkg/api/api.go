// Package api contains shared JSON request/response structs.
// This package is shared between the CLI, the controller and the runner.
package api

import "time"

// DispatchResponse is the response body after requesting a manual run.
type DispatchResponse struct {
	DispatchID int64  `json:"dispatch_id"`
	Workflow   string `json:"workflow"`
}

// RunResponse represents a workflow run in API responses.
type RunResponse struct {
	ID           string     `json:"id"`
	Workflow     string     `json:"workflow"`
	Trigger      string     `json:"trigger"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	Error        *string    `json:"error,omitempty"`
	PublishedRev *string    `json:"published_rev,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ListRunsResponse is the response body for run listings.
type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AddLogRequest is the payload sent by the runner while a run is executing.
type AddLogRequest struct {
	Content string `json:"content"`
}

// LogEntry represents a single log line in the response.
type LogEntry struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GetLogsResponse is the response body for fetching run logs.
type GetLogsResponse struct {
	Logs []LogEntry `json:"logs"`
}

// ArtifactResponse represents a stored artifact attached to a run.
type ArtifactResponse struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}

// ListArtifactsResponse is the response body for artifact listings.
type ListArtifactsResponse struct {
	Artifacts []ArtifactResponse `json:"artifacts"`
}
