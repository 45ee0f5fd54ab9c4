// Package spool stores uploaded audio on disk for the duration of one
// transcription. Every upload gets its own uniquely named file.
package spool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/okian/medscribe/internal/domain/types"
	"github.com/okian/medscribe/pkg/logger"
	"github.com/okian/medscribe/pkg/metrics"
)

const (
	defaultPrefix   = "medscribe"
	defaultMaxBytes = 25 << 20
	maxNameLen      = 64
	fallbackName    = "upload"
)

// Spool writes uploads to per-request files under a directory.
type Spool struct {
	dir      string
	prefix   string
	maxBytes int64
	active   atomic.Int64
}

// New creates a Spool rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Spool, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoDir, dir, err)
	}
	s := &Spool{dir: dir, prefix: defaultPrefix, maxBytes: defaultMaxBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string { return s.dir }

// MaxBytes returns the per-upload size limit.
func (s *Spool) MaxBytes() int64 { return s.maxBytes }

// Active returns the number of spool files not yet removed.
func (s *Spool) Active() int64 { return s.active.Load() }

// Save copies r into a new spool file. Uploads larger than the limit are
// discarded and ErrTooLarge is returned.
func (s *Spool) Save(ctx context.Context, filename, contentType string, r io.Reader) (types.Upload, error) {
	if err := ctx.Err(); err != nil {
		return types.Upload{}, err
	}

	name := SanitizeFilename(filename)
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s-%s", s.prefix, uuid.NewString(), name))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return types.Upload{}, fmt.Errorf("create spool file: %w", err)
	}
	s.active.Add(1)

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	upload := types.Upload{Filename: name, Path: path, Size: n, ContentType: contentType}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err != nil {
		s.Remove(ctx, upload)
		return types.Upload{}, err
	}

	metrics.RecordUploadSize(n)
	return upload, nil
}

// Remove deletes the spool file of u. Missing files are ignored.
func (s *Spool) Remove(ctx context.Context, u types.Upload) {
	if u.Path == "" {
		return
	}
	err := os.Remove(u.Path)
	switch {
	case err == nil:
		s.active.Add(-1)
	case os.IsNotExist(err):
	default:
		logger.Get().Warn(ctx, "failed to remove spool file",
			logger.String("path", u.Path), logger.Error(err))
		metrics.RecordErrorByComponent("spool", "remove")
	}
}

// SanitizeFilename reduces a client supplied name to a safe base name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxNameLen {
		out = out[len(out)-maxNameLen:]
	}
	if out == "" {
		return fallbackName
	}
	return out
}
