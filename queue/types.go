package queue

import (
	"fmt"
	"time"
)

// DefaultQueue is the Redis list scan jobs are pushed onto.
const DefaultQueue = "scans"

// Job is a single unit of scan work submitted to the queue. It carries
// identifiers only: the worker re-reads the scan from storage so a stale
// payload can never resurrect a deleted scan.
type Job struct {
	// JobID is a UUID identifying this enqueue attempt.
	JobID string `json:"job_id"`

	// ScanID is the scan the worker should execute.
	ScanID string `json:"scan_id"`

	// OwnerID is the user the scan runs for.
	OwnerID string `json:"owner_id"`

	// TraceID is the distributed tracing trace ID for observability.
	TraceID string `json:"trace_id,omitempty"`

	// SubmittedAt is the Unix timestamp in milliseconds when the job was
	// submitted.
	SubmittedAt int64 `json:"submitted_at"`
}

// IsValid checks that the job has all required fields populated.
// Returns an error describing any validation failures.
func (j *Job) IsValid() error {
	if j.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if j.ScanID == "" {
		return fmt.Errorf("scan_id is required")
	}
	if j.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if j.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", j.SubmittedAt)
	}
	return nil
}

// Age returns how long ago the job was submitted.
func (j *Job) Age() time.Duration {
	submitted := time.UnixMilli(j.SubmittedAt)
	return time.Since(submitted)
}
