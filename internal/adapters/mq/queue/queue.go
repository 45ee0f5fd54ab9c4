// Package queue defines the contract for enqueuing and consuming
// transcription jobs. The in-memory implementation is a bounded channel;
// a full queue rejects instead of blocking so callers can shed load.
package queue

import (
	"context"
	"sync"

	"github.com/okian/medscribe/internal/domain/model"
	"github.com/okian/medscribe/pkg/metrics"
)

const defaultQueueCapacity = 16

// Job is the payload type flowing through the queue.
type Job = *model.Job

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue without blocking.
	// Returns ErrFull when at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns a channel that will receive jobs as they become available.
	// The channel will be closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Cap returns the maximum number of queued jobs.
	Cap() int

	// Close gracefully shuts down the queue.
	// After closing, no new jobs can be enqueued.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
// A capacity of zero makes the queue a direct hand-off to an idle worker.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected("context_cancelled")
		return err
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordQueueRejected("full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue. Consumers should also
// watch ctx; the channel only closes on Close.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Job {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Cap returns the configured capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close gracefully shuts down the queue. Jobs already queued stay
// readable until drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
