package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrNoFile           = errors.New("No file provided") //nolint:stylecheck // client-facing text
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrBackpressure     = errors.New("backpressure")
	ErrUnavailable      = errors.New("service unavailable")
	ErrTranscription    = errors.New("transcription failed")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInternal         = errors.New("internal error")

	errTrailingData = errors.New("unexpected data after JSON value")
)

// Error ties an operation name to an error kind and an optional cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind classifies err as kind for op. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op without classifying it. A nil err yields nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// publicMessage is the text sent to clients: the kind when known, so
// internal causes do not leak.
func publicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		if errors.Is(e.Kind, ErrBadRequest) && e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.Error()
	}
	return err.Error()
}
