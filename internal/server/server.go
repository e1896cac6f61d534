// Package server provides an in-memory reference implementation of the
// ad-removal backend's status API, used by the console for development and
// by the tests as an in-process collaborator.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/podscrub/podscrub/internal/metrics"
)

// Server wraps the store, the websocket hub and the HTTP routes.
type Server struct {
	store   *Store
	hub     *hub
	mux     *http.ServeMux
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a server around the given store. A nil store gets a fresh
// empty one.
func New(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = NewStore(logger)
	}

	s := &Server{
		store:   store,
		hub:     newHub(logger),
		mux:     http.NewServeMux(),
		metrics: metrics.NewCollector(),
		logger:  logger,
	}
	store.SetEventSink(s.hub.Broadcast)
	s.routes()
	return s
}

// Store returns the backing store, for seeding and test drivers.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/trigger/status", s.handleTriggerStatus)
	s.mux.HandleFunc("GET /api/posts/{guid}/status", s.handleEpisodeStatus)
	s.mux.HandleFunc("POST /api/posts/{guid}/process", s.handleProcess)
	s.mux.HandleFunc("POST /api/posts/{guid}/reprocess", s.handleReprocess)
	s.mux.HandleFunc("GET /api/jobs/active", s.handleActiveJobs)
	s.mux.HandleFunc("GET /api/job-manager/status", s.handleManagerStatus)
	s.mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)
	s.mux.HandleFunc("GET /api/jobs/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/jobs/ws", s.handleWS)
	s.mux.HandleFunc("GET /api/metrics", s.handleMetrics)
}

// Handler returns the HTTP handler with request logging and metrics attached.
func (s *Server) Handler() http.Handler {
	return s.withLogging(s.mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("reference server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
