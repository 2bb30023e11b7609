// Package dispatch routes accepted scans to their execution venue: the
// external queue when it is reachable, an in-process goroutine when it is
// not. Scan acceptance never fails on queue trouble; the fallback keeps a
// single-node deployment fully functional with no queue at all.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/surfaceguard/engine/queue"
)

// Backend is the external queue the dispatcher prefers. queue.Client
// satisfies it.
type Backend interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Runner executes one scan to completion, used for the in-process
// fallback path.
type Runner interface {
	Run(ctx context.Context, scanID string) error
}

// Options configures a Dispatcher.
type Options struct {
	// Backend is the external queue. A nil backend sends every scan down
	// the fallback path.
	Backend Backend

	// Runner executes fallback scans in-process.
	Runner Runner

	// Logger records dispatch decisions. Defaults to slog.Default.
	Logger *slog.Logger

	// EnqueueTimeout bounds the enqueue attempt so a hung queue cannot
	// stall scan acceptance. Defaults to 2s.
	EnqueueTimeout time.Duration
}

// Dispatcher submits scans for execution.
type Dispatcher struct {
	backend Backend
	runner  Runner
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.EnqueueTimeout == 0 {
		opts.EnqueueTimeout = 2 * time.Second
	}
	return &Dispatcher{
		backend: opts.Backend,
		runner:  opts.Runner,
		logger:  opts.Logger,
		timeout: opts.EnqueueTimeout,
	}
}

// Submit routes the job to the queue, falling back to an in-process run
// when the queue is absent or the enqueue fails. Submit itself never
// returns an error: by the time a scan is dispatched it is already
// accepted and persisted, and the fallback path always exists.
func (d *Dispatcher) Submit(ctx context.Context, job queue.Job) {
	if d.backend != nil {
		ectx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.backend.Enqueue(ectx, job)
		cancel()
		if err == nil {
			d.logger.Debug("scan dispatched to queue", "job_id", job.JobID, "scan_id", job.ScanID)
			return
		}
		d.logger.Warn("queue enqueue failed, running scan in-process",
			"job_id", job.JobID,
			"scan_id", job.ScanID,
			"error", err)
	}

	// The fallback run outlives the submitting request, so it detaches
	// from the caller's cancellation while keeping its values.
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.runner.Run(runCtx, job.ScanID); err != nil {
			d.logger.Error("in-process scan run failed",
				"job_id", job.JobID,
				"scan_id", job.ScanID,
				"error", err)
		}
	}()
}

// Wait blocks until all in-process fallback runs have finished. Used for
// graceful shutdown and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
