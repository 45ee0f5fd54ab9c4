// Package types contains common types used across the application
package types

import "time"

// Upload is an audio file spooled to disk and waiting for transcription.
type Upload struct {
	Filename    string // name supplied by the client, already sanitised
	Path        string // spool file location
	Size        int64
	ContentType string
}

// Transcript is the text produced for one upload.
type Transcript struct {
	Text     string        `json:"transcript"`
	Language string        `json:"-"`
	Duration time.Duration `json:"-"`
}
