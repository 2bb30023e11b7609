package queue

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Runner executes one scan to completion. The execution driver implements
// this; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, scanID string) error
}

// WorkerOptions configures a queue worker.
type WorkerOptions struct {
	// Client is the queue to drain.
	Client Client

	// Runner executes the popped scans.
	Runner Runner

	// Logger records worker lifecycle and job outcomes. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// Concurrency is the number of goroutines draining the queue.
	// Defaults to 1.
	Concurrency int
}

// Worker drains the scan queue and hands each job to the runner. The
// runner owns failure handling, so a returned error is logged and the
// worker moves on to the next job.
type Worker struct {
	client      Client
	runner      Runner
	logger      *slog.Logger
	concurrency int
}

// NewWorker creates a queue worker.
func NewWorker(opts WorkerOptions) *Worker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Worker{
		client:      opts.Client,
		runner:      opts.Runner,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
	}
}

// Start drains the queue until the context is cancelled. It blocks; run it
// in a goroutine for a non-blocking worker.
func (w *Worker) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.drain(ctx, id)
		}(i)
	}
	wg.Wait()
}

// Run starts the worker and blocks until SIGINT or SIGTERM.
func (w *Worker) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.logger.Info("worker starting", "concurrency", w.concurrency)
	w.Start(ctx)
	w.logger.Info("worker stopped")
}

func (w *Worker) drain(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.client.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to pop job", "worker", id, "error", err)
			continue
		}
		if job == nil {
			// Blocking read timed out with an empty queue.
			continue
		}
		if err := job.IsValid(); err != nil {
			w.logger.Warn("discarding malformed job", "worker", id, "error", err)
			continue
		}

		w.logger.Info("job received",
			"worker", id,
			"job_id", job.JobID,
			"scan_id", job.ScanID,
			"age", job.Age())

		if err := w.runner.Run(ctx, job.ScanID); err != nil {
			w.logger.Error("scan run failed",
				"worker", id,
				"job_id", job.JobID,
				"scan_id", job.ScanID,
				"error", err)
		}
	}
}
