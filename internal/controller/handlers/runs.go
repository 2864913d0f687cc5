package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"leadrunner/pkg/api"
)

// GetRun handles GET /runs/{id}.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.store.GetRunByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.httpError(w, "Run not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to fetch run", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, runToResponse(run))
}

// ListRuns handles GET /workflows/{workflow}/runs.
// Results come back most recent first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workflow := r.PathValue("workflow")
	if workflow != h.workflow {
		h.httpError(w, "Unknown workflow", http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	offset := 0
	if o := query.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	runs, err := h.store.ListRuns(ctx, workflow, limit, offset)
	if err != nil {
		h.httpError(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}

	apiRuns := make([]api.RunResponse, len(runs))
	for i := range runs {
		apiRuns[i] = runToResponse(&runs[i])
	}

	h.respondJson(w, http.StatusOK, api.ListRunsResponse{Runs: apiRuns})
}
