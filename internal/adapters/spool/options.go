package spool

// Option applies a configuration option to the Spool.
type Option func(*Spool)

// WithMaxBytes caps the size of a single spooled upload.
func WithMaxBytes(n int64) Option {
	return func(s *Spool) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithPrefix sets the file name prefix used for spool files.
func WithPrefix(prefix string) Option {
	return func(s *Spool) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}
