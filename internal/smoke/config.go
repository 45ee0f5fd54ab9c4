// Package smoke drives a running medscribe instance end to end: health,
// summaries, FHIR sync and concurrent transcriptions.
package smoke

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Requests   int           // Number of transcriptions to submit
	Workers    int           // Number of concurrent clients
	Timeout    time.Duration // HTTP request timeout
	AudioFile  string        // Audio to upload; a generated WAV when empty
	Retries    int           // Retries on 429 and 5xx
	ExpectText string        // Expected transcript, unchecked when empty
	Verbose    bool          // Log every response
}

// Stats holds run statistics.
type Stats struct {
	Summaries  int
	Syncs      int
	Submitted  int
	Succeeded  int
	Rejected   int
	Failed     int
	Mismatched int
	StartTime  time.Time
	Duration   time.Duration
}

// SOAPNote mirrors the server's note.
type SOAPNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// SummaryResponse is the body of POST /api/summarize.
type SummaryResponse struct {
	SOAP      SOAPNote `json:"soap"`
	Narrative string   `json:"narrative"`
	Codes     []string `json:"codes"`
}

// StatusResponse is the body of /healthz and POST /api/fhir-sync.
type StatusResponse struct {
	Status string `json:"status"`
}

// TranscribeResponse is the body of POST /api/transcribe.
type TranscribeResponse struct {
	Transcript string `json:"transcript"`
}

// ErrorResponse is the body of any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
