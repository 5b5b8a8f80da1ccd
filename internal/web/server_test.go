package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conorfennell/archpad/internal/cache"
)

type fakeSyncer struct {
	synced bool
	err    error
	calls  int
}

func (f *fakeSyncer) SyncFromServer(context.Context) (bool, error) {
	f.calls++
	return f.synced, f.err
}

func newTestServer(t *testing.T, syncer SyncRunner) (*Server, *cache.Worker) {
	t.Helper()
	worker := cache.NewWorker(cache.NewStore(t.TempDir()), "http://origin.invalid", 1, nil)
	return NewServer(worker, syncer), worker
}

func TestHandlePostSync(t *testing.T) {
	t.Run("get is not allowed", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeSyncer{})
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", rec.Code)
		}
	})

	t.Run("post triggers a sync and reports the result", func(t *testing.T) {
		syncer := &fakeSyncer{synced: true}
		s, _ := newTestServer(t, syncer)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		if syncer.calls != 1 {
			t.Errorf("Expected one sync call, got %d", syncer.calls)
		}
		if !strings.Contains(rec.Body.String(), `"synced":true`) {
			t.Errorf("Expected a synced:true body, got %q", rec.Body.String())
		}
	})

	t.Run("sync failure maps to a bad gateway", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeSyncer{err: errors.New("server unreachable")})
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("Expected status 502, got %d", rec.Code)
		}
	})
}

func TestHandlePostActivate(t *testing.T) {
	s, worker := newTestServer(t, &fakeSyncer{})

	t.Run("get is not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/control/activate", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", rec.Code)
		}
	})

	t.Run("post delivers the skip-waiting message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/control/activate", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", rec.Code)
		}
		// The worker was never waiting, so the message is a no-op.
		if worker.Active() {
			t.Error("Expected a non-waiting worker to stay inactive")
		}
	})
}

func TestResourceRequestsFlowThroughTheWorker(t *testing.T) {
	s, _ := newTestServer(t, &fakeSyncer{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/glossary", nil))

	// Nothing cached and no reachable origin: the worker degrades to the
	// offline placeholder instead of an error page.
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected the offline placeholder, got status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected a text/plain placeholder, got %q", ct)
	}
}
