// Package sync pulls the canonical term and formula collections from the
// server and overwrites the local mirrors. Reconciliation is strictly
// one-directional: local custom terms and quiz scores are never pushed.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/conorfennell/archpad/internal/domain"
	"github.com/conorfennell/archpad/internal/fault"
	"github.com/conorfennell/archpad/internal/notify"
)

// Store is the slice of the local store the syncer writes through.
type Store interface {
	PutTerm(domain.Term) error
	PutFormula(domain.Formula) error
}

// Syncer reconciles the server-owned collections with their local mirrors.
type Syncer struct {
	store   Store
	client  *http.Client
	baseURL string
	online  func() bool
	sink    notify.Sink
}

// New builds a syncer against the given API base URL. The default
// connectivity probe dials the API host; tests replace it with SetOnline.
func New(store Store, baseURL string, sink notify.Sink) *Syncer {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Syncer{
		store:   store,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		online:  onlineProbe(baseURL),
		sink:    sink,
	}
}

// SetOnline replaces the connectivity probe.
func (s *Syncer) SetOnline(probe func() bool) {
	s.online = probe
}

// SetClient replaces the HTTP client.
func (s *Syncer) SetClient(client *http.Client) {
	s.client = client
}

// SyncFromServer pulls the full terms and formulas collections and puts
// each record into the local store, server always winning per record.
// Offline is a skip, not an error: it returns (false, nil) without
// touching local data or the network. Any HTTP error aborts the remaining
// work with no rollback of records already applied.
func (s *Syncer) SyncFromServer(ctx context.Context) (bool, error) {
	if !s.online() {
		slog.Info("offline, skipping sync")
		s.sink.Notify(notify.Info, "Working offline - showing saved data")
		return false, nil
	}

	var terms []domain.Term
	if err := s.fetchJSON(ctx, "/api/terms", &terms); err != nil {
		return false, s.syncFailed("failed to fetch terms", err)
	}
	for _, t := range terms {
		if err := s.store.PutTerm(t); err != nil {
			return false, s.syncFailed(fmt.Sprintf("failed to store term %d", t.ID), err)
		}
	}

	var formulas []domain.Formula
	if err := s.fetchJSON(ctx, "/api/formulas", &formulas); err != nil {
		return false, s.syncFailed("failed to fetch formulas", err)
	}
	for _, f := range formulas {
		if err := s.store.PutFormula(f); err != nil {
			return false, s.syncFailed(fmt.Sprintf("failed to store formula %d", f.ID), err)
		}
	}

	slog.Info("sync complete", "terms", len(terms), "formulas", len(formulas))
	return true, nil
}

func (s *Syncer) syncFailed(msg string, cause error) error {
	s.sink.Notify(notify.Error, "Sync failed - will retry when back online")
	return fault.New(fault.Sync, msg, cause)
}

func (s *Syncer) fetchJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// onlineProbe reports reachability of the API host with a short dial, the
// closest server-side analogue of the browser's connectivity flag.
func onlineProbe(baseURL string) func() bool {
	return func() bool {
		u, err := url.Parse(baseURL)
		if err != nil {
			return false
		}
		host := u.Host
		if u.Port() == "" {
			switch u.Scheme {
			case "https":
				host = net.JoinHostPort(u.Hostname(), "443")
			default:
				host = net.JoinHostPort(u.Hostname(), "80")
			}
		}
		conn, err := net.DialTimeout("tcp", host, 2*time.Second)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}
