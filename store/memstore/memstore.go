// Package memstore is an in-memory implementation of the store interfaces.
// It backs tests and the fully in-process wiring used when the engine runs
// without external storage.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/audit"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/scan"
	"github.com/surfaceguard/engine/store"
)

// Store holds all records in process memory, guarded by one mutex. Suitable
// for tests and single-process embedding; not durable.
type Store struct {
	mu       sync.RWMutex
	assets   map[string]*asset.Asset
	scans    map[string]*scan.Scan
	findings map[string][]*finding.Finding // keyed by scan id
	usage    map[string]usageRow           // keyed by user id
	events   []*audit.Event
}

type usageRow struct {
	count int
	date  string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		assets:   make(map[string]*asset.Asset),
		scans:    make(map[string]*scan.Scan),
		findings: make(map[string][]*finding.Finding),
		usage:    make(map[string]usageRow),
	}
}

var _ store.Store = (*Store)(nil)

// CreateAsset persists a new asset.
func (s *Store) CreateAsset(_ context.Context, a *asset.Asset) error {
	if err := a.Validate(); err != nil {
		return store.ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.assets[a.ID] = &cp
	return nil
}

// GetAsset returns the asset with the given id.
func (s *Store) GetAsset(_ context.Context, id string) (*asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAssetsByOwner returns all assets owned by the given user.
func (s *Store) ListAssetsByOwner(_ context.Context, ownerID string) ([]*asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*asset.Asset
	for _, a := range s.assets {
		if a.OwnerID == ownerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteAsset removes an asset.
func (s *Store) DeleteAsset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.assets, id)
	return nil
}

// CreateScan persists a new scan.
func (s *Store) CreateScan(_ context.Context, sc *scan.Scan) error {
	if sc.ID == "" || !sc.Status.IsValid() {
		return store.ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans[sc.ID] = copyScan(sc)
	return nil
}

// GetScan returns the scan with the given id.
func (s *Store) GetScan(_ context.Context, id string) (*scan.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyScan(sc), nil
}

// ListScansByOwner returns the owner's scans, newest first.
func (s *Store) ListScansByOwner(_ context.Context, ownerID string) ([]*scan.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*scan.Scan
	for _, sc := range s.scans {
		if sc.OwnerID == ownerID {
			out = append(out, copyScan(sc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MarkRunning transitions a scan from queued to running.
func (s *Store) MarkRunning(_ context.Context, id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return store.ErrNotFound
	}
	if sc.Status != scan.StatusQueued {
		return store.ErrConflict
	}
	sc.Status = scan.StatusRunning
	t := startedAt
	sc.StartedAt = &t
	return nil
}

// MarkFailed transitions a scan into the failed state.
func (s *Store) MarkFailed(_ context.Context, id string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return store.ErrNotFound
	}
	if sc.Status.IsTerminal() {
		return store.ErrConflict
	}
	sc.Status = scan.StatusFailed
	t := completedAt
	sc.CompletedAt = &t
	return nil
}

// UpdateProgress sets the scan's progress percentage.
func (s *Store) UpdateProgress(_ context.Context, id string, pct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return store.ErrNotFound
	}
	sc.Progress = pct
	return nil
}

// SetResults records score and counts and completes the scan.
func (s *Store) SetResults(_ context.Context, id string, scoreValue int, counts finding.Counts, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return store.ErrNotFound
	}
	if sc.Status != scan.StatusRunning {
		return store.ErrConflict
	}
	sc.Status = scan.StatusCompleted
	v := scoreValue
	sc.Score = &v
	sc.SeverityCounts = counts
	sc.Progress = 100
	t := completedAt
	sc.CompletedAt = &t
	return nil
}

// DeleteScan removes a scan and its findings.
func (s *Store) DeleteScan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.scans, id)
	delete(s.findings, id)
	return nil
}

// ReplaceFindings atomically replaces the finding set of a scan.
func (s *Store) ReplaceFindings(_ context.Context, scanID string, findings []*finding.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[scanID]; !ok {
		return store.ErrNotFound
	}
	out := make([]*finding.Finding, 0, len(findings))
	for _, f := range findings {
		cp := *f
		out = append(out, &cp)
	}
	s.findings[scanID] = out
	return nil
}

// ListFindingsByScan returns all findings recorded for a scan.
func (s *Store) ListFindingsByScan(_ context.Context, scanID string) ([]*finding.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs := s.findings[scanID]
	out := make([]*finding.Finding, 0, len(fs))
	for _, f := range fs {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

// DeleteFindingsByScan removes all findings recorded for a scan.
func (s *Store) DeleteFindingsByScan(_ context.Context, scanID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.findings, scanID)
	return nil
}

// GetUsage returns the user's current (count, date) pair.
func (s *Store) GetUsage(_ context.Context, userID string) (int, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.usage[userID]
	return row.count, row.date, nil
}

// IncrementUsage increments the user's counter for the given day,
// resetting first when the stored day differs.
func (s *Store) IncrementUsage(_ context.Context, userID, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.usage[userID]
	if row.date != day {
		row = usageRow{date: day}
	}
	row.count++
	s.usage[userID] = row
	return row.count, nil
}

// AppendEvent persists an audit event.
func (s *Store) AppendEvent(_ context.Context, e *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

// ListEventsByActor returns the actor's events, newest first.
func (s *Store) ListEventsByActor(_ context.Context, actorID string) ([]*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*audit.Event
	for _, e := range s.events {
		if e.ActorID == actorID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func copyScan(sc *scan.Scan) *scan.Scan {
	cp := *sc
	cp.AssetIDs = append([]string(nil), sc.AssetIDs...)
	if sc.Score != nil {
		v := *sc.Score
		cp.Score = &v
	}
	if sc.StartedAt != nil {
		t := *sc.StartedAt
		cp.StartedAt = &t
	}
	if sc.CompletedAt != nil {
		t := *sc.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
