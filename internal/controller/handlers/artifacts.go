package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"leadrunner/pkg/api"
)

// ListRunArtifacts handles GET /runs/{id}/artifacts.
func (h *Handlers) ListRunArtifacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	artifacts, err := h.store.ListArtifactsByRun(ctx, runID)
	if err != nil {
		h.httpError(w, "Failed to fetch artifacts", http.StatusInternalServerError)
		return
	}

	apiArtifacts := make([]api.ArtifactResponse, len(artifacts))
	for i, a := range artifacts {
		apiArtifacts[i] = api.ArtifactResponse{
			ID:        a.ID.String(),
			RunID:     a.RunID.String(),
			Name:      a.Name,
			SizeBytes: a.SizeBytes,
			Digest:    a.Digest,
			CreatedAt: a.CreatedAt,
		}
	}

	h.respondJson(w, http.StatusOK, api.ListArtifactsResponse{Artifacts: apiArtifacts})
}

// DownloadArtifact handles GET /artifacts/{id}/download.
// Streams the stored file; the record's path points into the runner's
// artifact directory, which the controller shares.
func (h *Handlers) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	artifactID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid artifact id", http.StatusBadRequest)
		return
	}

	a, err := h.store.GetArtifactByID(ctx, artifactID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.httpError(w, "Artifact not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to fetch artifact", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+a.Name+`"`)
	http.ServeFile(w, r, a.Path)
}
