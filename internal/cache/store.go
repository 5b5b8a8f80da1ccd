// Package cache implements the cache-first fetch layer: named, versioned
// on-disk response caches and a worker that intercepts resource requests,
// serving cached copies before touching the network.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// Store keeps named caches as directories under a root. Each entry is a
// meta file (URL, status, headers) plus a body file, keyed by a hash of
// the request URL.
type Store struct {
	root string
}

// NewStore returns a store rooted at dir. The directory is created on
// first write.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Entry is one cached response.
type Entry struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

type entryMeta struct {
	URL    string      `json:"url"`
	Status int         `json:"status"`
	Header http.Header `json:"header"`
}

// Key reduces a request to its cache key: the hex SHA-256 of the
// path-and-query, so distinct query strings cache separately.
func Key(r *http.Request) string {
	sum := sha256.Sum256([]byte(r.URL.RequestURI()))
	return fmt.Sprintf("%x", sum)
}

// Put stores a response in the named cache, overwriting any previous entry
// for the same request. The body file lands before the meta file so a
// half-written entry never matches.
func (s *Store) Put(name string, r *http.Request, status int, header http.Header, body []byte) error {
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache %s: %w", name, err)
	}

	key := Key(r)
	if err := os.WriteFile(filepath.Join(dir, key+".body"), body, 0o644); err != nil {
		return fmt.Errorf("failed to write cache body for %s: %w", r.URL.RequestURI(), err)
	}

	meta, err := json.Marshal(entryMeta{URL: r.URL.RequestURI(), Status: status, Header: header})
	if err != nil {
		return fmt.Errorf("failed to encode cache meta for %s: %w", r.URL.RequestURI(), err)
	}
	if err := os.WriteFile(filepath.Join(dir, key+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("failed to write cache meta for %s: %w", r.URL.RequestURI(), err)
	}
	return nil
}

// Match looks up a cached response for the request. Returns (nil, nil) on
// a miss; a miss is not an error.
func (s *Store) Match(name string, r *http.Request) (*Entry, error) {
	dir := filepath.Join(s.root, name)
	key := Key(r)

	raw, err := os.ReadFile(filepath.Join(dir, key+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache meta for %s: %w", r.URL.RequestURI(), err)
	}

	var meta entryMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode cache meta for %s: %w", r.URL.RequestURI(), err)
	}

	body, err := os.ReadFile(filepath.Join(dir, key+".body"))
	if err != nil {
		return nil, fmt.Errorf("failed to read cache body for %s: %w", r.URL.RequestURI(), err)
	}

	return &Entry{URL: meta.URL, Status: meta.Status, Header: meta.Header, Body: body}, nil
}

// Names lists every cache owned by this store.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// DeleteCache removes an entire named cache. Absent caches are a no-op.
func (s *Store) DeleteCache(name string) error {
	if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
		return fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	return nil
}
