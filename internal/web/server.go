// Package web is the local shell server: every resource request flows
// through the cache worker, and two control routes let a page trigger a
// sync or activate a waiting cache update.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/conorfennell/archpad/internal/cache"
)

// SyncRunner triggers a pull from the server. Satisfied by *sync.Syncer.
type SyncRunner interface {
	SyncFromServer(ctx context.Context) (bool, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	router *http.ServeMux
	worker *cache.Worker
	syncer SyncRunner
}

// NewServer creates and configures a new server.
func NewServer(worker *cache.Worker, syncer SyncRunner) *Server {
	s := &Server{
		router: http.NewServeMux(),
		worker: worker,
		syncer: syncer,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("/sync", s.handlePostSync())
	s.router.HandleFunc("/control/activate", s.handlePostActivate())

	// Everything else is a resource request and goes through the
	// cache-first worker.
	s.router.Handle("/", s.worker)
}

// handlePostSync triggers a manual pull from the server.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		synced, err := s.syncer.SyncFromServer(r.Context())
		if err != nil {
			slog.Error("manual sync failed", "error", err)
			http.Error(w, "Sync failed", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"synced": synced})
	}
}

// handlePostActivate is the page-to-worker control message: activate a
// waiting cache update immediately instead of waiting for a reload.
func (s *Server) handlePostActivate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := s.worker.SkipWaiting(r.Context()); err != nil {
			slog.Error("activate failed", "error", err)
			http.Error(w, "Activate failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
