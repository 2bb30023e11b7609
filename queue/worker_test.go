package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu   sync.Mutex
	ran  []string
	done chan string
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{done: make(chan string, 16)}
}

func (r *recordingRunner) Run(_ context.Context, scanID string) error {
	r.mu.Lock()
	r.ran = append(r.ran, scanID)
	r.mu.Unlock()
	r.done <- scanID
	return nil
}

func (r *recordingRunner) runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func TestWorkerDrainsQueue(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := newRecordingRunner()
	w := NewWorker(WorkerOptions{Client: client, Runner: runner})

	job := validJob()
	require.NoError(t, client.Enqueue(ctx, job))

	go w.Start(ctx)

	select {
	case scanID := <-runner.done:
		assert.Equal(t, "scan-1", scanID)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not process the job in time")
	}

	cancel()
}

func TestWorkerStopsOnCancel(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	w := NewWorker(WorkerOptions{Client: client, Runner: newRecordingRunner()})

	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorkerDiscardsMalformedJobs(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A payload missing required fields is logged and dropped, and the
	// worker keeps going.
	_, err := mr.Lpush(DefaultQueue, `{"job_id":"only-an-id"}`)
	require.NoError(t, err)
	job := validJob()
	require.NoError(t, client.Enqueue(ctx, job))

	runner := newRecordingRunner()
	w := NewWorker(WorkerOptions{Client: client, Runner: runner})
	go w.Start(ctx)

	select {
	case scanID := <-runner.done:
		assert.Equal(t, "scan-1", scanID)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not process the valid job")
	}
	assert.Equal(t, []string{"scan-1"}, runner.runs())
}

func TestNewWorkerDefaults(t *testing.T) {
	w := NewWorker(WorkerOptions{})
	assert.Equal(t, 1, w.concurrency)
	assert.NotNil(t, w.logger)
}
