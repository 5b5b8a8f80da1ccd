package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/conorfennell/archpad/internal/fault"
)

// offlineBody is the synthesized placeholder served when both the cache
// and the network fail for a resource.
const offlineBody = "Offline - resource unavailable"

// Worker is the fetch interception point. It serves requests cache-first
// from its versioned cache, falls back to the origin on a miss, refreshes
// the cache behind successful responses, and degrades to a plain-text 503
// when both fail.
type Worker struct {
	store     *Store
	client    *http.Client
	origin    string
	cacheName string
	manifest  []string

	mu      sync.Mutex
	active  bool
	waiting bool

	// pending tracks in-flight write-behind stores so Close and tests can
	// wait for them.
	pending sync.WaitGroup
}

// NewWorker builds a worker for the given origin. The cache name embeds
// the version token; bumping the version is the only way to invalidate a
// previously seeded asset set.
func NewWorker(store *Store, origin string, version int, manifest []string) *Worker {
	return &Worker{
		store:     store,
		client:    &http.Client{Timeout: 30 * time.Second},
		origin:    origin,
		cacheName: fmt.Sprintf("archpad-shell-v%d", version),
		manifest:  manifest,
	}
}

// CacheName returns the versioned cache this worker reads and writes.
func (w *Worker) CacheName() string {
	return w.cacheName
}

// Active reports whether the worker has claimed control of requests.
func (w *Worker) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Install pre-populates the cache with the asset manifest. Seeding is
// all-or-nothing: a single failed manifest entry deletes the partial cache
// and fails the install, leaving any previous version in control. A cache
// already seeded for this version is left as is; install fires once per
// version.
func (w *Worker) Install(ctx context.Context) error {
	names, err := w.store.Names()
	if err != nil {
		return fault.New(fault.CacheFetch, "failed to enumerate caches", err)
	}
	for _, name := range names {
		if name == w.cacheName {
			w.mu.Lock()
			w.waiting = true
			w.mu.Unlock()
			slog.Info("cache already installed", "cache", w.cacheName)
			return nil
		}
	}

	for _, path := range w.manifest {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.origin+path, nil)
		if err != nil {
			return w.installFailed(path, err)
		}
		resp, err := w.client.Do(req)
		if err != nil {
			return w.installFailed(path, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return w.installFailed(path, err)
		}
		if resp.StatusCode != http.StatusOK {
			return w.installFailed(path, fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if err := w.store.Put(w.cacheName, req, resp.StatusCode, resp.Header, body); err != nil {
			return w.installFailed(path, err)
		}
	}

	w.mu.Lock()
	w.waiting = true
	w.mu.Unlock()
	slog.Info("cache install complete", "cache", w.cacheName, "assets", len(w.manifest))
	return nil
}

func (w *Worker) installFailed(path string, cause error) error {
	if err := w.store.DeleteCache(w.cacheName); err != nil {
		slog.Warn("failed to discard partial cache", "cache", w.cacheName, "error", err)
	}
	return fault.New(fault.CacheFetch, "failed to precache "+path, cause)
}

// Activate sweeps every cache whose name differs from the current version
// and takes control of requests immediately.
func (w *Worker) Activate(ctx context.Context) error {
	names, err := w.store.Names()
	if err != nil {
		return fault.New(fault.CacheFetch, "failed to enumerate caches", err)
	}
	for _, name := range names {
		if name == w.cacheName {
			continue
		}
		slog.Info("sweeping stale cache", "cache", name)
		if err := w.store.DeleteCache(name); err != nil {
			return fault.New(fault.CacheFetch, "failed to sweep cache "+name, err)
		}
	}

	w.mu.Lock()
	w.active = true
	w.waiting = false
	w.mu.Unlock()
	slog.Info("cache worker active", "cache", w.cacheName)
	return nil
}

// SkipWaiting is the page-to-worker control message: a waiting worker
// activates now instead of waiting for the usual reload cadence. Calling
// it on a worker that is not waiting is a no-op.
func (w *Worker) SkipWaiting(ctx context.Context) error {
	w.mu.Lock()
	waiting := w.waiting
	w.mu.Unlock()
	if !waiting {
		return nil
	}
	return w.Activate(ctx)
}

// ServeHTTP applies the cache-first strategy: a hit is served with no
// network attempt and no staleness check; a miss goes to the origin, and a
// 200 response is stored behind the reply. When both cache and network
// fail the caller still gets a response, a plain-text 503 placeholder.
// Only an activated worker intercepts, and only GET requests can hit or
// populate the cache; everything else passes straight to the origin.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	intercept := w.Active() && r.Method == http.MethodGet
	if intercept {
		ent, err := w.store.Match(w.cacheName, r)
		if err != nil {
			slog.Warn("cache lookup failed", "url", r.URL.RequestURI(), "error", err)
		}
		if ent != nil {
			serveEntry(rw, ent)
			return
		}
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, w.origin+r.URL.RequestURI(), r.Body)
	if err != nil {
		serveOffline(rw)
		return
	}
	resp, err := w.client.Do(req)
	if err != nil {
		slog.Info("network fetch failed, serving offline placeholder", "url", r.URL.RequestURI(), "error", err)
		serveOffline(rw)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		serveOffline(rw)
		return
	}

	copyHeader(rw.Header(), resp.Header)
	rw.WriteHeader(resp.StatusCode)
	rw.Write(body)

	// Write-behind: only clean 200s are cached, and a failed store must
	// never fail the response already sent.
	if intercept && resp.StatusCode == http.StatusOK {
		stored := cloneRequestURL(r)
		header := resp.Header.Clone()
		status := resp.StatusCode
		w.pending.Add(1)
		go func() {
			defer w.pending.Done()
			if err := w.store.Put(w.cacheName, stored, status, header, body); err != nil {
				slog.Warn("write-behind failed", "url", stored.URL.RequestURI(), "error", err)
			}
		}()
	}
}

// Close waits for in-flight write-behind stores to finish.
func (w *Worker) Close() {
	w.pending.Wait()
}

func serveEntry(rw http.ResponseWriter, ent *Entry) {
	copyHeader(rw.Header(), ent.Header)
	rw.WriteHeader(ent.Status)
	rw.Write(ent.Body)
}

func serveOffline(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusServiceUnavailable)
	io.WriteString(rw, offlineBody)
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// cloneRequestURL keeps just what the cache key needs, detached from the
// request's lifetime.
func cloneRequestURL(r *http.Request) *http.Request {
	u := *r.URL
	return &http.Request{Method: r.Method, URL: &u}
}
