// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	jobqueue "github.com/okian/medscribe/internal/adapters/mq/queue"
	workerpool "github.com/okian/medscribe/internal/adapters/mq/worker"
	"github.com/okian/medscribe/internal/adapters/spool"
	"github.com/okian/medscribe/internal/adapters/stt"
	"github.com/okian/medscribe/internal/domain/clinical"
	"github.com/okian/medscribe/internal/domain/model"
	"github.com/okian/medscribe/internal/domain/types"
	"github.com/okian/medscribe/pkg/logger"
	"github.com/okian/medscribe/pkg/metrics"
)

const (
	defaultWorkerCount    = 2
	defaultQueueSize      = 16
	defaultMaxUploadBytes = 25 << 20
)

// Service implements the API dependencies for the clinical scribe.
type Service struct {
	mu sync.RWMutex

	// Core components
	summarizer  clinical.Summarizer
	transcriber workerpool.Transcriber
	spool       *spool.Spool
	jobQueue    jobqueue.Queue
	workerPool  *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	spoolDir       string
	maxUploadBytes int64

	// State
	started   bool
	startedAt time.Time

	// Logging
	log logger.Logger
}

// New constructs a new Service with default configuration. Without
// WithTranscriber the offline mock backend is used.
func New(opts ...Option) *Service {
	s := &Service{
		summarizer:     clinical.NewStaticSummarizer(),
		workerCount:    defaultWorkerCount,
		queueSize:      defaultQueueSize,
		spoolDir:       os.TempDir(),
		maxUploadBytes: defaultMaxUploadBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the spool, queue and worker pool. Workers outlive ctx
// cancellation; they are stopped by Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.log == nil {
		s.log = logger.Get()
	}
	if s.transcriber == nil {
		s.transcriber = stt.NewMock()
	}

	s.logger().Info(ctx, "starting medscribe service...")

	sp, err := spool.New(s.spoolDir, spool.WithMaxBytes(s.maxUploadBytes))
	if err != nil {
		return fmt.Errorf("service start: %w", err)
	}
	s.spool = sp
	s.jobQueue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s.transcriber, s.spool)
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = time.Now()
	s.logger().Info(ctx, "medscribe service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("spoolDir", sp.Dir()),
		logger.String("backend", backendName(s.transcriber)),
	)

	return nil
}

// Stop closes the queue and waits for in-flight transcriptions, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger().Info(ctx, "stopping medscribe service...")
	s.started = false

	err := s.workerPool.Shutdown(ctx)
	if err != nil {
		s.logger().Warn(ctx, "worker pool did not drain in time", logger.Error(err))
	}
	s.logger().Info(ctx, "medscribe service stopped")
	return err
}

// Summarize returns the clinical summary for a transcript.
func (s *Service) Summarize(ctx context.Context, req clinical.Request) (clinical.Summary, error) {
	s.logger().Debug(ctx, "summarize requested", logger.Int("transcriptChars", len(req.Transcript)))

	sum, err := s.summarizer.Summarize(ctx, req)
	if err != nil {
		return clinical.Summary{}, err
	}
	metrics.RecordSummary()
	return sum, nil
}

// Sync accepts a FHIR payload, logs it and discards it. An empty payload
// is logged as null.
func (s *Service) Sync(ctx context.Context, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	s.logger().Info(ctx, "fhir data received",
		logger.String("sync_id", uuid.NewString()),
		logger.Int("bytes", len(payload)),
		logger.Any("payload", payload),
	)
	metrics.RecordFHIRSync(len(payload))
	return nil
}

// Transcribe spools r, queues it for a worker and waits for the transcript.
// If ctx ends first the job is abandoned and its spool file removed by the worker.
func (s *Service) Transcribe(ctx context.Context, filename, contentType string, r io.Reader) (types.Transcript, error) {
	start := time.Now()
	tr, err := s.transcribe(ctx, filename, contentType, r)
	metrics.RecordTranscriptionLatency(float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil:
		metrics.RecordTranscription("success")
	case errors.Is(err, ErrBackpressure), errors.Is(err, ErrTooLarge):
		metrics.RecordTranscription("rejected")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.RecordTranscription("cancelled")
	default:
		metrics.RecordTranscription("failed")
	}
	return tr, err
}

func (s *Service) transcribe(ctx context.Context, filename, contentType string, r io.Reader) (types.Transcript, error) {
	s.mu.RLock()
	started, sp, q := s.started, s.spool, s.jobQueue
	s.mu.RUnlock()
	if !started {
		return types.Transcript{}, ErrNotStarted
	}

	upload, err := sp.Save(ctx, filename, contentType, r)
	if err != nil {
		if errors.Is(err, spool.ErrTooLarge) {
			return types.Transcript{}, fmt.Errorf("%w: %w", ErrTooLarge, err)
		}
		return types.Transcript{}, fmt.Errorf("spool upload: %w", err)
	}

	job := model.NewJob(uuid.NewString(), upload, ctx.Done())
	if err := q.Enqueue(ctx, job); err != nil {
		sp.Remove(ctx, upload)
		switch {
		case errors.Is(err, jobqueue.ErrFull):
			return types.Transcript{}, ErrBackpressure
		case errors.Is(err, jobqueue.ErrClosed):
			return types.Transcript{}, ErrUnavailable
		default:
			return types.Transcript{}, err
		}
	}
	s.logger().Debug(ctx, "transcription queued",
		logger.String("job_id", job.ID),
		logger.String("file", upload.Filename),
		logger.Int64("bytes", upload.Size),
	)

	select {
	case res := <-job.Done:
		if res.Err != nil {
			if ctx.Err() != nil {
				return types.Transcript{}, ctx.Err()
			}
			return types.Transcript{}, fmt.Errorf("%w: %w", ErrTranscription, res.Err)
		}
		return res.Transcript, nil
	case <-ctx.Done():
		return types.Transcript{}, ctx.Err()
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"maxUploadBytes": s.maxUploadBytes,
		"backend":        backendName(s.transcriber),
	}

	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		stats["queueLength"] = s.jobQueue.Len(context.Background())
		stats["spooledFiles"] = s.spool.Active()
		stats["workers"] = s.workerPool.Stats()
	}

	return stats
}

func (s *Service) logger() logger.Logger {
	if s.log != nil {
		return s.log
	}
	return logger.Get()
}

func backendName(t workerpool.Transcriber) string {
	if n, ok := t.(interface{ Name() string }); ok {
		return n.Name()
	}
	if t == nil {
		return "none"
	}
	return "custom"
}
