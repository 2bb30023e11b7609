// Package store defines the persistence interfaces the engine consumes and
// the sentinel errors implementations return. Storage technology is a
// collaborator concern: the engine works against these interfaces only.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/audit"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/scan"
)

// Common errors returned by store operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrConflict is returned when a conditional state transition loses,
	// e.g. marking running a scan that is no longer queued.
	ErrConflict = errors.New("store: conflicting state transition")

	// ErrInvalidRecord is returned when a record fails validation on write.
	ErrInvalidRecord = errors.New("store: invalid record")
)

// AssetStore reads and writes Asset records.
type AssetStore interface {
	// CreateAsset persists a new asset.
	CreateAsset(ctx context.Context, a *asset.Asset) error

	// GetAsset returns the asset with the given id.
	// Returns ErrNotFound if it does not exist.
	GetAsset(ctx context.Context, id string) (*asset.Asset, error)

	// ListAssetsByOwner returns all assets owned by the given user.
	ListAssetsByOwner(ctx context.Context, ownerID string) ([]*asset.Asset, error)

	// DeleteAsset removes an asset.
	// Returns ErrNotFound if it does not exist.
	DeleteAsset(ctx context.Context, id string) error
}

// ScanStore reads and writes Scan records and performs the conditional
// lifecycle transitions the driver relies on.
type ScanStore interface {
	// CreateScan persists a new scan in the queued state.
	CreateScan(ctx context.Context, s *scan.Scan) error

	// GetScan returns the scan with the given id.
	// Returns ErrNotFound if it does not exist.
	GetScan(ctx context.Context, id string) (*scan.Scan, error)

	// ListScansByOwner returns the owner's scans, newest first.
	ListScansByOwner(ctx context.Context, ownerID string) ([]*scan.Scan, error)

	// MarkRunning transitions a scan from queued to running and records
	// startedAt. Returns ErrConflict if the scan is not queued, making the
	// queued → running claim exactly-once under concurrent driver passes.
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error

	// MarkFailed transitions a scan into the failed state and records
	// completedAt. Terminal states are never overwritten: returns
	// ErrConflict if the scan is already completed or failed.
	MarkFailed(ctx context.Context, id string, completedAt time.Time) error

	// UpdateProgress sets the scan's progress percentage.
	// Returns ErrNotFound if the scan no longer exists, which is how an
	// in-flight driver pass detects that its scan was deleted.
	UpdateProgress(ctx context.Context, id string, pct int) error

	// SetResults records score and severity counts, forces progress to
	// 100, and transitions the scan into completed. Returns ErrConflict
	// if the scan is not running.
	SetResults(ctx context.Context, id string, scoreValue int, counts finding.Counts, completedAt time.Time) error

	// DeleteScan removes a scan. Implementations must cascade-delete the
	// scan's findings: no finding may outlive its scan.
	DeleteScan(ctx context.Context, id string) error
}

// FindingStore reads and writes Finding records.
type FindingStore interface {
	// ReplaceFindings atomically replaces the full finding set of a scan
	// (delete-all-then-insert). Findings are derived artifacts of a run,
	// never appended to across runs.
	ReplaceFindings(ctx context.Context, scanID string, findings []*finding.Finding) error

	// ListFindingsByScan returns all findings recorded for a scan.
	ListFindingsByScan(ctx context.Context, scanID string) ([]*finding.Finding, error)

	// DeleteFindingsByScan removes all findings recorded for a scan.
	DeleteFindingsByScan(ctx context.Context, scanID string) error
}

// UsageStore tracks the per-user daily usage counter behind the quota gate.
// The date is a UTC day string in "2006-01-02" form.
type UsageStore interface {
	// GetUsage returns the user's current (count, date) pair. A user with
	// no recorded usage returns (0, "").
	GetUsage(ctx context.Context, userID string) (count int, date string, err error)

	// IncrementUsage increments the user's counter for the given day and
	// returns the new count. A stored date different from day resets the
	// counter to 1. The increment must be atomic with respect to
	// concurrent callers for the same user.
	IncrementUsage(ctx context.Context, userID, day string) (int, error)
}

// AuditStore appends audit trail events.
type AuditStore interface {
	// AppendEvent persists an audit event.
	AppendEvent(ctx context.Context, e *audit.Event) error

	// ListEventsByActor returns the actor's events, newest first.
	ListEventsByActor(ctx context.Context, actorID string) ([]*audit.Event, error)
}

// Store aggregates every persistence interface the engine consumes.
type Store interface {
	AssetStore
	ScanStore
	FindingStore
	UsageStore
	AuditStore
}
