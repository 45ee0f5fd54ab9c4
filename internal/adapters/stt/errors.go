package stt

import (
	"errors"
	"fmt"
)

// Sentinel kinds for speech-to-text errors.
var (
	ErrUnknownBackend = errors.New("unknown stt backend")
	ErrUpstream       = errors.New("stt upstream failed")
	ErrRejected       = errors.New("stt upstream rejected request")
	ErrBadResponse    = errors.New("stt upstream returned malformed response")
	ErrUpload         = errors.New("stt upload unreadable")
)

// StatusError is a non-2xx answer from the upstream.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the status: 4xx other than 408/429 is a rejection,
// everything else an upstream failure.
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != 408 && e.StatusCode != 429 {
		return ErrRejected
	}
	return ErrUpstream
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrRejected) && !errors.Is(err, ErrBadResponse) && !errors.Is(err, ErrUpload)
}
