package service

import "errors"

// Sentinel kinds returned by Service. The HTTP layer maps them to status codes.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrTooLarge      = errors.New("upload too large")
	ErrBackpressure  = errors.New("transcription queue full")
	ErrUnavailable   = errors.New("transcription unavailable")
	ErrTranscription = errors.New("transcription failed")
)
