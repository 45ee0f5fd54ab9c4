// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/medscribe/internal/domain/types"
)

// Job is one transcription request travelling from the HTTP handler
// through the queue to a worker.
type Job struct {
	ID         string
	Upload     types.Upload
	EnqueuedAt time.Time

	// Cancelled is closed when the submitting request goes away.
	Cancelled <-chan struct{}
	// Done receives exactly one Result. It must be buffered.
	Done chan Result
}

// Result is the outcome of a Job.
type Result struct {
	Transcript types.Transcript
	Err        error
}

// NewJob returns a Job with a buffered Done channel.
func NewJob(id string, upload types.Upload, cancelled <-chan struct{}) *Job {
	return &Job{
		ID:         id,
		Upload:     upload,
		EnqueuedAt: time.Now(),
		Cancelled:  cancelled,
		Done:       make(chan Result, 1),
	}
}

// Finish delivers r without blocking; later calls are dropped.
func (j *Job) Finish(r Result) {
	select {
	case j.Done <- r:
	default:
	}
}

// Abandoned reports whether the submitter has gone away.
func (j *Job) Abandoned() bool {
	if j.Cancelled == nil {
		return false
	}
	select {
	case <-j.Cancelled:
		return true
	default:
		return false
	}
}
