// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"leadrunner/internal/store"
	"leadrunner/pkg/api"
)

// StoreFactory combines the interfaces needed for the controller to function.
type StoreFactory interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	Ping(ctx context.Context) error
	store.RunStore
	store.LogStore
	store.ArtifactRecords
	store.DispatchQueue
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store    StoreFactory
	workflow string
}

// New creates a new Handlers instance with the given store dependency.
// workflow names the single workflow this controller manages.
func New(s StoreFactory, workflow string) *Handlers {
	return &Handlers{store: s, workflow: workflow}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

func runToResponse(r *store.Run) api.RunResponse {
	return api.RunResponse{
		ID:           r.ID.String(),
		Workflow:     r.Workflow,
		Trigger:      string(r.Trigger),
		Status:       string(r.Status),
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		ExitCode:     r.ExitCode,
		Error:        r.ErrorMessage,
		PublishedRev: r.PublishedRev,
		CreatedAt:    r.CreatedAt,
	}
}
