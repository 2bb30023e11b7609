// Package health provides health check functions for the engine's
// dependencies: storage, the scan queue, and the external binaries the
// probes shell out to.
package health

import (
	"context"
	"fmt"
	"os/exec"
)

// State represents the outcome of a health check.
type State string

const (
	// StateHealthy means the dependency is fully operational.
	StateHealthy State = "healthy"

	// StateDegraded means the dependency works but with reduced
	// capability, e.g. a missing optional binary.
	StateDegraded State = "degraded"

	// StateUnhealthy means the dependency is unusable.
	StateUnhealthy State = "unhealthy"
)

// Status is the result of one health check.
type Status struct {
	// State is the check outcome.
	State State `json:"state"`

	// Message is a human-readable explanation.
	Message string `json:"message"`

	// Details holds structured supporting data.
	Details map[string]any `json:"details,omitempty"`
}

// NewHealthyStatus creates a healthy Status.
func NewHealthyStatus(message string) Status {
	return Status{State: StateHealthy, Message: message}
}

// NewDegradedStatus creates a degraded Status.
func NewDegradedStatus(message string, details map[string]any) Status {
	return Status{State: StateDegraded, Message: message, Details: details}
}

// NewUnhealthyStatus creates an unhealthy Status.
func NewUnhealthyStatus(message string, details map[string]any) Status {
	return Status{State: StateUnhealthy, Message: message, Details: details}
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.State == StateHealthy }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.State == StateUnhealthy }

// Pinger is any dependency exposing a connectivity probe. The storage and
// queue layers both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a dependency's connectivity. A nil pinger is reported
// as degraded: the engine runs without a queue, but the operator should
// know which mode it is in.
func PingCheck(ctx context.Context, name string, p Pinger) Status {
	if p == nil {
		return NewDegradedStatus(
			fmt.Sprintf("%s is not configured", name),
			map[string]any{"dependency": name},
		)
	}
	if err := p.Ping(ctx); err != nil {
		return NewUnhealthyStatus(
			fmt.Sprintf("%s is unreachable", name),
			map[string]any{"dependency": name, "error": err.Error()},
		)
	}
	return NewHealthyStatus(fmt.Sprintf("%s is reachable", name))
}

// BinaryCheck verifies that a binary exists in the system PATH. A missing
// binary is degraded, not unhealthy: the probes that need it downgrade
// their findings instead of failing the scan.
func BinaryCheck(name string) Status {
	if name == "" {
		return NewUnhealthyStatus("binary name cannot be empty", nil)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return NewDegradedStatus(
			fmt.Sprintf("binary '%s' not found in PATH", name),
			map[string]any{"binary": name, "error": err.Error()},
		)
	}
	return NewHealthyStatus(fmt.Sprintf("binary '%s' found at %s", name, path))
}

// Combine aggregates check results into one overall status: any unhealthy
// dependency makes the whole engine unhealthy, any degraded one degrades
// it.
func Combine(statuses map[string]Status) Status {
	overall := StateHealthy
	for _, s := range statuses {
		switch s.State {
		case StateUnhealthy:
			overall = StateUnhealthy
		case StateDegraded:
			if overall == StateHealthy {
				overall = StateDegraded
			}
		}
	}

	details := make(map[string]any, len(statuses))
	for name, s := range statuses {
		details[name] = s
	}
	return Status{
		State:   overall,
		Message: fmt.Sprintf("%d dependencies checked", len(statuses)),
		Details: details,
	}
}
