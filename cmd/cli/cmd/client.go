package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadrunner/pkg/api"
)

// RunnerClient handles API calls to the leadrunner controller.
type RunnerClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewRunnerClient creates a new client with the given base URL and token.
func NewRunnerClient(baseURL, token string) *RunnerClient {
	return &RunnerClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *RunnerClient) do(method, endpoint string) (*http.Response, error) {
	httpReq, err := http.NewRequest(method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Dispatch sends POST /workflows/{workflow}/dispatch to request a manual run.
func (c *RunnerClient) Dispatch(workflow string) (*api.DispatchResponse, error) {
	resp, err := c.do(http.MethodPost, fmt.Sprintf("%s/workflows/%s/dispatch", c.BaseURL, workflow))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.DispatchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// GetRun sends GET /runs/{id} to retrieve run details.
func (c *RunnerClient) GetRun(runID string) (*api.RunResponse, error) {
	resp, err := c.do(http.MethodGet, fmt.Sprintf("%s/runs/%s", c.BaseURL, runID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.RunResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// ListRuns sends GET /workflows/{workflow}/runs to retrieve run history.
func (c *RunnerClient) ListRuns(workflow string, limit, offset int) ([]api.RunResponse, error) {
	endpoint := fmt.Sprintf("%s/workflows/%s/runs?limit=%d&offset=%d", c.BaseURL, workflow, limit, offset)
	resp, err := c.do(http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.ListRunsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Runs, nil
}

// GetLogs sends GET /runs/{id}/logs to retrieve run logs.
func (c *RunnerClient) GetLogs(runID string, afterID int64) ([]api.LogEntry, error) {
	endpoint := fmt.Sprintf("%s/runs/%s/logs?after_id=%d", c.BaseURL, runID, afterID)
	resp, err := c.do(http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.GetLogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Logs, nil
}

// ListArtifacts sends GET /runs/{id}/artifacts to list failure diagnostics.
func (c *RunnerClient) ListArtifacts(runID string) ([]api.ArtifactResponse, error) {
	resp, err := c.do(http.MethodGet, fmt.Sprintf("%s/runs/%s/artifacts", c.BaseURL, runID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.ListArtifactsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Artifacts, nil
}

// DownloadArtifact sends GET /artifacts/{id}/download and streams the
// artifact content into out.
func (c *RunnerClient) DownloadArtifact(artifactID string, out io.Writer) (int64, error) {
	resp, err := c.do(http.MethodGet, fmt.Sprintf("%s/artifacts/%s/download", c.BaseURL, artifactID))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read artifact: %w", err)
	}
	return n, nil
}
