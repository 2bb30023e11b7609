// Package audit defines the append-only audit trail events recorded around
// scan lifecycle operations. Audit writes are best-effort: a failed audit
// write never fails the operation it describes.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the engine.
const (
	ActionStartScan    = "start_scan"
	ActionCompleteScan = "complete_scan"
	ActionDeleteScan   = "delete_scan"
)

// Event is one audit trail entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// ActorID identifies the user the action was performed for.
	ActorID string `json:"actor_id"`

	// Action names what happened, e.g. "start_scan".
	Action string `json:"action"`

	// TargetType is the kind of record acted on, e.g. "scan".
	TargetType string `json:"target_type"`

	// TargetID identifies the record acted on.
	TargetID string `json:"target_id"`

	// Details holds structured context for the event.
	Details map[string]any `json:"details,omitempty"`

	// CreatedAt is the timestamp when the event was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent creates an Event with a generated id and the current timestamp.
func NewEvent(actorID, action, targetType, targetID string, details map[string]any) *Event {
	return &Event{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
}
