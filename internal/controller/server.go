// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"net/http"
	"time"

	"leadrunner/internal/controller/handlers"
	"leadrunner/internal/controller/middleware"
)

// Options configures the controller server.
type Options struct {
	Addr     string
	Workflow string
	// OperatorTokenHash guards the public endpoints.
	OperatorTokenHash string
	// RateLimit applies to the dispatch endpoint only.
	RateLimit      float64
	RateLimitBurst int
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(opts Options, store handlers.StoreFactory) *Server {
	h := handlers.New(store, opts.Workflow)
	authMW := middleware.Auth(opts.OperatorTokenHash)
	rateMW := middleware.RateLimit(opts.RateLimit, opts.RateLimitBurst)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)

	// Public authenticated apis
	mux.Handle("POST /workflows/{workflow}/dispatch", authMW(rateMW(http.HandlerFunc(h.Dispatch))))
	mux.Handle("GET /workflows/{workflow}/runs", authMW(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /runs/{id}", authMW(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /runs/{id}/logs", authMW(http.HandlerFunc(h.GetRunLogs)))
	mux.Handle("GET /runs/{id}/artifacts", authMW(http.HandlerFunc(h.ListRunArtifacts)))
	mux.Handle("GET /artifacts/{id}/download", authMW(http.HandlerFunc(h.DownloadArtifact)))

	// Internal endpoints
	// These are called by the runner agent.
	// These should run on a separate port or strict network rules.
	mux.HandleFunc("POST /internal/runs/{id}/logs", h.InternalAddLogs)

	return &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
