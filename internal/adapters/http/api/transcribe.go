package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	service "github.com/okian/medscribe/internal/app"
	"github.com/okian/medscribe/internal/domain/types"
	"github.com/okian/medscribe/pkg/logger"
)

const (
	uploadField = "file"
	// writeGrace leaves time to send the error body after the deadline fires.
	writeGrace = 10 * time.Second
	// multipartOverhead leaves room for boundaries and other form fields.
	multipartOverhead = 1 << 20
)

// TranscribeDependencies turns uploaded audio into text.
type TranscribeDependencies interface {
	Transcribe(ctx context.Context, filename, contentType string, r io.Reader) (types.Transcript, error)
}

// TranscribeHandler handles transcription uploads.
type TranscribeHandler struct {
	deps     TranscribeDependencies
	maxBytes int64
	timeout  time.Duration
}

// NewTranscribeHandler creates a new transcribe handler. maxBytes bounds
// the file part; non-positive values disable the request size cap.
// timeout bounds upload plus transcription; non-positive values leave the
// server's own read and write timeouts in charge.
func NewTranscribeHandler(deps TranscribeDependencies, maxBytes int64, timeout time.Duration) *TranscribeHandler {
	return &TranscribeHandler{deps: deps, maxBytes: maxBytes, timeout: timeout}
}

// HandleTranscribe handles POST /api/transcribe requests. The "file" part
// is streamed straight to the spool without buffering the whole form.
func (h *TranscribeHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	const op = "api.transcribe"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	}
	if h.timeout > 0 {
		// connection deadlines outlast the request deadline so the
		// timeout is answered with 504 instead of a reset
		deadline := time.Now().Add(h.timeout)
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(deadline)
		_ = rc.SetWriteDeadline(deadline.Add(writeGrace))

		ctx, cancel := context.WithDeadline(r.Context(), deadline)
		defer cancel()
		r = r.WithContext(ctx)
	}

	part, err := findFilePart(r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	defer func() { _ = part.Close() }()

	tr, err := h.deps.Transcribe(r.Context(), part.FileName(), part.Header.Get("Content-Type"), part)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newTranscribeResponse(tr))
}

// findFilePart returns the first multipart part named "file" that carries a
// filename. A plain form field named "file" is not an upload.
func findFilePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, ErrNoFile
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFile
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		if part.FormName() == uploadField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (h *TranscribeHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, ErrNoFile):
		writeError(w, r, http.StatusBadRequest, "bad_request", NewKind(op, ErrNoFile))
	case errors.Is(err, service.ErrTooLarge), errors.As(err, &tooBig):
		writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrPayloadTooLarge, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, r, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, service.ErrTranscription):
		writeError(w, r, http.StatusBadGateway, "transcription_failed", WrapKind(op, ErrTranscription, err))
	case errors.Is(err, context.Canceled):
		logger.Get().Info(r.Context(), "client went away during transcription", logger.Error(err))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "timeout", WrapKind(op, ErrTranscription, err))
	case errors.Is(err, ErrBadRequest):
		writeError(w, r, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
