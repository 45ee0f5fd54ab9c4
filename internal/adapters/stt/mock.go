package stt

import (
	"context"
	"time"

	"github.com/okian/medscribe/internal/domain/types"
)

// DefaultMockText is returned by a Mock without configured text.
const DefaultMockText = "Patient reports mild chest pain during exertion. No associated nausea or dizziness."

// Mock is an offline Transcriber for development and tests.
type Mock struct {
	Text  string
	Delay time.Duration
	Err   error
}

// NewMock returns a Mock answering DefaultMockText.
func NewMock() *Mock {
	return &Mock{Text: DefaultMockText}
}

// Name implements Transcriber.
func (m *Mock) Name() string { return "mock" }

// Transcribe waits Delay, then returns Err or Text.
func (m *Mock) Transcribe(ctx context.Context, u types.Upload) (types.Transcript, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return types.Transcript{}, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return types.Transcript{}, m.Err
	}
	return types.Transcript{Text: m.Text, Language: "en"}, nil
}
