// Package clinical defines the clinical note produced for a visit transcript.
package clinical

import (
	"context"
	"fmt"
	"slices"
)

// SOAPNote is a note in Subjective/Objective/Assessment/Plan form.
type SOAPNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// Summary is the structured output for one transcript.
type Summary struct {
	SOAP      SOAPNote `json:"soap"`
	Narrative string   `json:"narrative"`
	Codes     []string `json:"codes"`
}

// Clone returns a deep copy of s.
func (s Summary) Clone() Summary {
	s.Codes = slices.Clone(s.Codes)
	return s
}

// Request carries the transcript to summarise. Transcript may be empty.
type Request struct {
	Transcript string `json:"transcript"`
}

// Summarizer turns a transcript into a clinical summary.
type Summarizer interface {
	// Summarize builds a summary, honoring ctx for cancellation.
	Summarize(ctx context.Context, in Request) (Summary, error)
}

// DefaultSummary is the canned angina note returned by StaticSummarizer.
func DefaultSummary() Summary {
	return Summary{
		SOAP: SOAPNote{
			Subjective: "Patient reports mild chest pain during exertion.",
			Objective:  "Vitals WNL. ECG pending.",
			Assessment: "Suspected angina.",
			Plan:       "Order ECG, refer to cardiology.",
		},
		Narrative: "The patient presents with mild chest pain during exertion. " +
			"No associated nausea or dizziness. ECG pending. Cardiology referral advised.",
		Codes: []string{
			"SNOMED: 29857009 (Angina pectoris)",
			"ICD-10: I20.9 (Angina, unspecified)",
		},
	}
}

// Option applies a configuration option to the StaticSummarizer.
type Option func(*StaticSummarizer)

// WithSummary replaces the canned summary.
func WithSummary(s Summary) Option {
	return func(st *StaticSummarizer) {
		st.summary = s.Clone()
	}
}

// StaticSummarizer ignores the transcript and always returns the same note.
type StaticSummarizer struct {
	summary Summary
}

// NewStaticSummarizer creates a summarizer returning DefaultSummary unless overridden.
func NewStaticSummarizer(opts ...Option) *StaticSummarizer {
	s := &StaticSummarizer{summary: DefaultSummary()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns a copy of the canned summary.
func (s *StaticSummarizer) Summarize(ctx context.Context, _ Request) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("context cancelled: %w", err)
	}
	return s.summary.Clone(), nil
}
