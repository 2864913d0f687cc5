package handlers

import (
	"net/http"

	"leadrunner/internal/controller/middleware"
	"leadrunner/internal/store"
	"leadrunner/pkg/api"
)

// Dispatch handles POST /workflows/{workflow}/dispatch.
// It enqueues a manual trigger; the runner picks it up on its next
// poll. The endpoint is idempotent in effect: if a run is already in
// flight when the dispatch is claimed, the run is recorded as skipped.
func (h *Handlers) Dispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workflow := r.PathValue("workflow")
	if workflow != h.workflow {
		h.httpError(w, "Unknown workflow", http.StatusNotFound)
		return
	}

	requestedBy := middleware.OperatorFromContext(ctx)

	id, err := h.store.EnqueueDispatch(ctx, nil, workflow, store.TriggerManual, requestedBy)
	if err != nil {
		h.httpError(w, "Failed to enqueue dispatch", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusAccepted, api.DispatchResponse{
		DispatchID: id,
		Workflow:   workflow,
	})
}
