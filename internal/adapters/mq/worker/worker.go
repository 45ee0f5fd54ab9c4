// Package worker runs transcription jobs taken off the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/medscribe/internal/adapters/mq/queue"
	"github.com/okian/medscribe/internal/domain/model"
	"github.com/okian/medscribe/internal/domain/types"
	"github.com/okian/medscribe/pkg/logger"
	"github.com/okian/medscribe/pkg/metrics"
)

const (
	defaultWorkerCount  = 2
	poolShutdownTimeout = 30 * time.Second
)

// ErrAbandoned is the result of a job whose caller left before a worker
// picked it up.
var ErrAbandoned = errors.New("job abandoned")

// Transcriber turns an upload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, u types.Upload) (types.Transcript, error)
}

// Cleaner removes a spooled upload once its job is finished.
type Cleaner interface {
	Remove(ctx context.Context, u types.Upload)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes transcription jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is closed.
	Run(ctx context.Context)

	// Shutdown waits for the worker to drain the closed queue.
	Shutdown(ctx context.Context) error
}

// counters are shared by every worker of a pool.
type counters struct {
	busy      atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	abandoned atomic.Int64
}

// InMemoryWorker implements Worker for transcription jobs.
type InMemoryWorker struct {
	queue       Queue
	transcriber Transcriber
	cleaner     Cleaner
	name        string
	stats       *counters

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, t Transcriber, c Cleaner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		transcriber: t,
		cleaner:     c,
		name:        "worker",
		stats:       &counters{},
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown waits until Run returns. The queue must be closed first.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job. The spool file is removed before the result is
// delivered, so a caller that sees the result never sees the file.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	start := time.Now()
	metrics.RecordQueueWait(float64(start.Sub(job.EnqueuedAt).Milliseconds()))

	if job.Abandoned() {
		w.cleaner.Remove(ctx, job.Upload)
		w.stats.abandoned.Add(1)
		metrics.RecordWorkerJobAbandoned()
		job.Finish(model.Result{Err: ErrAbandoned})
		return
	}

	w.stats.busy.Add(1)
	metrics.WorkerBusy(1)
	result := w.transcribe(ctx, job)
	metrics.WorkerBusy(-1)
	w.stats.busy.Add(-1)
	metrics.RecordWorkerJobLatency(float64(time.Since(start).Milliseconds()))

	w.cleaner.Remove(ctx, job.Upload)
	job.Finish(result)
}

func (w *InMemoryWorker) transcribe(ctx context.Context, job queue.Job) model.Result {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if job.Cancelled != nil {
		go func() {
			select {
			case <-job.Cancelled:
				cancel()
			case <-jobCtx.Done():
			}
		}()
	}

	tr, err := w.transcriber.Transcribe(jobCtx, job.Upload)
	if err != nil {
		w.stats.failed.Add(1)
		metrics.RecordErrorByComponent("worker", "transcription_error")
		metrics.RecordErrorByType("transcription_error", "high")
		w.logger.Error(ctx, "transcription failed",
			logger.String("job_id", job.ID),
			logger.String("file", job.Upload.Filename),
			logger.Error(err),
		)
		return model.Result{Err: err}
	}

	w.stats.succeeded.Add(1)
	metrics.RecordTranscriptLength(len(tr.Text))
	w.logger.Info(ctx, "transcribed text",
		logger.String("job_id", job.ID),
		logger.String("transcript", tr.Text),
		logger.String("language", tr.Language),
		logger.Duration("audio_duration", tr.Duration),
	)
	return model.Result{Transcript: tr}
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Workers   int   `json:"workers"`
	Busy      int64 `json:"busy"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Abandoned int64 `json:"abandoned"`
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *counters
	cancel  context.CancelFunc

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, t Transcriber, c Cleaner) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		stats:   &counters{},
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, t, c,
			WithName("worker-"+strconv.Itoa(i)),
			withCounters(pool.stats),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool. Cancelling ctx aborts in-flight jobs.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   len(p.workers),
		Busy:      p.stats.busy.Load(),
		Succeeded: p.stats.succeeded.Load(),
		Failed:    p.stats.failed.Load(),
		Abandoned: p.stats.abandoned.Load(),
	}
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx (or the pool timeout) expires are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, worker := range p.workers {
		if err := worker.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut = true
			break
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
