// Package stt adapts external speech-to-text engines behind one interface.
package stt

import (
	"context"
	"fmt"

	"github.com/okian/medscribe/internal/config"
	"github.com/okian/medscribe/internal/domain/types"
)

// Transcriber turns a spooled audio upload into text.
type Transcriber interface {
	// Transcribe reads the upload and returns its transcript. It honors ctx.
	Transcribe(ctx context.Context, u types.Upload) (types.Transcript, error)
	// Name identifies the backend in logs and metrics.
	Name() string
}

// New builds the Transcriber selected by cfg.STTBackend. The result is
// safe for concurrent use and is meant to be shared by all workers.
func New(cfg *config.Config) (Transcriber, error) {
	switch cfg.STTBackend {
	case config.BackendWhisper:
		return NewWhisperClient(cfg.STTURL,
			WithAPIKey(cfg.STTAPIKey),
			WithModel(cfg.STTModel),
			WithLanguage(cfg.STTLanguage),
			WithTimeout(cfg.STTTimeout),
			WithRetries(cfg.STTRetries),
			WithRetryDelay(cfg.STTRetryDelay),
		), nil
	case config.BackendMock:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.STTBackend)
	}
}
