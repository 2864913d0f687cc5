package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"leadrunner/pkg/api"
)

func TestStatusCommand_Success(t *testing.T) {
	resetViper()

	startTime := time.Now().Add(-10 * time.Minute)
	endTime := time.Now().Add(-9 * time.Minute)
	exitCode := 0
	rev := "4f2d9c1ab8e7"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET method, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "/runs/run-123") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected Bearer token, got: %s", r.Header.Get("Authorization"))
		}

		resp := api.RunResponse{
			ID:           "run-123",
			Workflow:     "lead-discovery",
			Trigger:      "schedule",
			Status:       "succeeded",
			StartedAt:    &startTime,
			CompletedAt:  &endTime,
			ExitCode:     &exitCode,
			PublishedRev: &rev,
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("token", "test-token")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"status", "run-123"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "run-123") {
		t.Errorf("expected run ID in output, got: %s", output)
	}
	if !strings.Contains(output, "succeeded") {
		t.Errorf("expected succeeded status, got: %s", output)
	}
	if !strings.Contains(output, "4f2d9c1ab8e7") {
		t.Errorf("expected published revision, got: %s", output)
	}
}

func TestStatusCommand_SucceededWithoutChanges(t *testing.T) {
	resetViper()

	exitCode := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := api.RunResponse{
			ID:       "run-noop",
			Workflow: "lead-discovery",
			Trigger:  "schedule",
			Status:   "succeeded",
			ExitCode: &exitCode,
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("token", "test-token")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"status", "run-noop"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "no changes") {
		t.Errorf("expected no-changes marker for unpublished success, got: %s", stdout.String())
	}
}

func TestStatusCommand_FailedRun(t *testing.T) {
	resetViper()

	startTime := time.Now().Add(-5 * time.Minute)
	endTime := time.Now().Add(-4 * time.Minute)
	exitCode := 1
	errMsg := "workflow exited with code 1"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := api.RunResponse{
			ID:          "run-456",
			Workflow:    "lead-discovery",
			Trigger:     "manual",
			Status:      "failed",
			StartedAt:   &startTime,
			CompletedAt: &endTime,
			ExitCode:    &exitCode,
			Error:       &errMsg,
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("token", "test-token")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"status", "run-456"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "failed") {
		t.Errorf("expected failed status, got: %s", output)
	}
	if !strings.Contains(output, "workflow exited with code 1") {
		t.Errorf("expected error message, got: %s", output)
	}
}

func TestStatusCommand_MissingToken(t *testing.T) {
	resetViper()

	viper.Set("url", "http://localhost:6161")
	viper.Set("token", "")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"status", "run-123"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Operator token not found") {
		t.Errorf("expected token error message, got: %s", stdout.String())
	}
}

func TestStatusCommand_NotFound(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("token", "test-token")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"status", "non-existent"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Request failed with status code: 404") {
		t.Errorf("expected 404 error, got: %s", stdout.String())
	}
}

func TestStatusCommand_RequiresRunIDArgument(t *testing.T) {
	resetViper()
	viper.Set("token", "test-token")

	var stderr bytes.Buffer
	rootCmd.SetOut(&stderr)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"status"}) // No run ID

	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error when no run ID provided")
	}
}

func TestColorizeStatus(t *testing.T) {
	tests := []struct {
		status   string
		contains string
	}{
		{"succeeded", "succeeded"},
		{"failed", "failed"},
		{"timed_out", "timed_out"},
		{"running", "running"},
		{"pending", "pending"},
		{"skipped", "skipped"},
		{"unknown", "unknown"},
	}

	for _, tt := range tests {
		result := colorizeStatus(tt.status)
		if !strings.Contains(result, tt.contains) {
			t.Errorf("colorizeStatus(%s) should contain %s, got: %s", tt.status, tt.contains, result)
		}
	}
}

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		status   string
		contains string
	}{
		{"succeeded", "✓"},
		{"failed", "✗"},
		{"timed_out", "✗"},
		{"running", "⏳"},
		{"pending", "◯"},
		{"skipped", "⊘"},
		{"unknown", "•"},
	}

	for _, tt := range tests {
		result := statusIcon(tt.status)
		if !strings.Contains(result, tt.contains) {
			t.Errorf("statusIcon(%s) should contain %s, got: %s", tt.status, tt.contains, result)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.5s"},
		{65 * time.Second, "1m 5s"},
		{125 * time.Minute, "2h 5m"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.duration, result, tt.expected)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		offset   time.Duration
		contains string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{48 * time.Hour, "2 days"},
	}

	for _, tt := range tests {
		testTime := time.Now().Add(-tt.offset)
		result := relativeTime(testTime)
		if !strings.Contains(result, tt.contains) {
			t.Errorf("relativeTime(%v ago) should contain %s, got: %s", tt.offset, tt.contains, result)
		}
	}
}
