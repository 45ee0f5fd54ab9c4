package service

import (
	"github.com/okian/medscribe/internal/adapters/mq/worker"
	"github.com/okian/medscribe/internal/domain/clinical"
	"github.com/okian/medscribe/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of transcription workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of waiting transcription jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.queueSize = size
		}
	}
}

// WithSpoolDir sets where uploads are kept while transcribed.
func WithSpoolDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.spoolDir = dir
		}
	}
}

// WithMaxUploadBytes caps the size of one upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithTranscriber sets the speech-to-text backend shared by all workers.
func WithTranscriber(t worker.Transcriber) Option {
	return func(s *Service) {
		if t != nil {
			s.transcriber = t
		}
	}
}

// WithSummarizer replaces the clinical summarizer.
func WithSummarizer(sum clinical.Summarizer) Option {
	return func(s *Service) {
		if sum != nil {
			s.summarizer = sum
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}
