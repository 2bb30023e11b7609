// Package scan defines the Scan entity, its lifecycle state machine, and
// the progress tracker used by the execution driver.
package scan

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/surfaceguard/engine/finding"
)

// Status represents the lifecycle state of a scan.
type Status string

const (
	// StatusQueued indicates the scan has been accepted but no driver pass
	// has claimed it yet. This is the only initial state.
	StatusQueued Status = "queued"

	// StatusRunning indicates a driver pass has claimed the scan and is
	// executing checks.
	StatusRunning Status = "running"

	// StatusCompleted indicates the scan finished and results are recorded.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the driver pass hit an unhandled error.
	StatusFailed Status = "failed"
)

// IsValid checks if the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status represents a final state.
// No transition leaves a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition: queued → running → {completed, failed}.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Scan is one execution run over a fixed asset list, with lifecycle state
// and an aggregate score. The asset list is fixed at creation; exactly one
// driver pass may execute per scan.
type Scan struct {
	// ID is the unique identifier for the scan.
	ID string `json:"id"`

	// OwnerID identifies the user the scan belongs to.
	OwnerID string `json:"owner_id"`

	// AssetIDs is the ordered, immutable list of asset ids to examine.
	AssetIDs []string `json:"asset_ids"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Progress is the completion percentage in [0,100]. It is held at 99
	// until the final state write so a poller never observes 100% on a
	// scan that is not yet completed.
	Progress int `json:"progress"`

	// Score is the aggregate risk score in [0,100], populated only on
	// transition into completed.
	Score *int `json:"score,omitempty"`

	// SeverityCounts tallies findings per severity, populated with Score.
	SeverityCounts finding.Counts `json:"severity_counts"`

	// CreatedAt is the timestamp when the scan was accepted.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is the timestamp of the queued → running transition.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is the timestamp of the transition into a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a Scan in the queued state over the given asset ids.
func New(ownerID string, assetIDs []string) (*Scan, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}
	if len(assetIDs) == 0 {
		return nil, fmt.Errorf("at least one asset ID is required")
	}
	ids := make([]string, len(assetIDs))
	copy(ids, assetIDs)
	return &Scan{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		AssetIDs:  ids,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}, nil
}
