package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"leadrunner/pkg/api"
)

// InternalAddLogs handles POST /internal/runs/{id}/logs.
// Called by the runner to append a log batch while a run executes.
func (h *Handlers) InternalAddLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	var req api.AddLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.AddLogEntry(ctx, runID, req.Content); err != nil {
		h.httpError(w, "Failed to persist log", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetRunLogs handles GET /runs/{id}/logs.
// Supports after_id for follow-style polling from the CLI.
func (h *Handlers) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	limit := 1000 // default limit
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 10000 {
			limit = parsed
		}
	}

	var afterID int64 = 0
	if after := query.Get("after_id"); after != "" {
		if parsed, err := strconv.ParseInt(after, 10, 64); err == nil {
			afterID = parsed
		}
	}

	logs, err := h.store.GetRunLogs(ctx, runID, afterID, limit)
	if err != nil {
		h.httpError(w, "Failed to fetch logs", http.StatusInternalServerError)
		return
	}

	apiLogs := make([]api.LogEntry, len(logs))
	for i, log := range logs {
		apiLogs[i] = api.LogEntry{
			ID:        log.ID,
			Content:   log.Content,
			CreatedAt: log.CreatedAt,
		}
	}

	h.respondJson(w, http.StatusOK, api.GetLogsResponse{Logs: apiLogs})
}
