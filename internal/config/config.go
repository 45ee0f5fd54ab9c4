// Package config defines service configuration and its loading from
// defaults, an optional YAML file and MEDSCRIBE_ environment variables.
package config

import (
	"os"
	"time"
)

// Speech-to-text backends understood by the service.
const (
	BackendWhisper = "whisper"
	BackendMock    = "mock"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`

	// CORSAllowedOrigins lists origins allowed to call the API; "*" allows all.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// MaxUploadBytes caps the size of a transcription upload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
	// SpoolDir holds uploads while they are transcribed.
	SpoolDir string `koanf:"spool_dir"`

	// STTBackend is either "whisper" (HTTP endpoint) or "mock".
	STTBackend    string        `koanf:"stt_backend"`
	STTURL        string        `koanf:"stt_url"`
	STTAPIKey     string        `koanf:"stt_api_key"`
	STTModel      string        `koanf:"stt_model"`
	STTLanguage   string        `koanf:"stt_language"`
	STTTimeout    time.Duration `koanf:"stt_timeout"`
	STTRetries    uint          `koanf:"stt_retries"`
	STTRetryDelay time.Duration `koanf:"stt_retry_delay"`

	// TranscribeWorkers sets the number of concurrent transcription workers.
	TranscribeWorkers int `koanf:"transcribe_workers"`
	// TranscribeQueueSize bounds pending transcription jobs.
	TranscribeQueueSize int `koanf:"transcribe_queue_size"`
	// TranscribeTimeout bounds one /api/transcribe request, upload included.
	// It replaces read_timeout and write_timeout on that route.
	TranscribeTimeout time.Duration `koanf:"transcribe_timeout"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":5000",
		ReadTimeout:         15 * time.Second,
		WriteTimeout:        120 * time.Second,
		CORSAllowedOrigins:  []string{"*"},
		MaxUploadBytes:      25 << 20,
		SpoolDir:            os.TempDir(),
		STTBackend:          BackendWhisper,
		STTURL:              "http://localhost:9000/v1/audio/transcriptions",
		STTModel:            "base",
		STTTimeout:          60 * time.Second,
		STTRetries:          3,
		STTRetryDelay:       500 * time.Millisecond,
		TranscribeWorkers:   2,
		TranscribeQueueSize: 16,
		TranscribeTimeout:   5 * time.Minute,
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.STTBackend != BackendWhisper && c.STTBackend != BackendMock:
		return invalid("unknown stt_backend %q", c.STTBackend)
	case c.STTBackend == BackendWhisper && c.STTURL == "":
		return invalid("stt_url is required for the whisper backend")
	case c.TranscribeWorkers < 1:
		return invalid("transcribe_workers must be at least 1")
	case c.TranscribeQueueSize < 0:
		return invalid("transcribe_queue_size must not be negative")
	case c.MaxUploadBytes <= 0:
		return invalid("max_upload_bytes must be positive")
	case c.TranscribeTimeout <= 0:
		return invalid("transcribe_timeout must be positive")
	case c.STTBackend == BackendWhisper && c.TranscribeTimeout < c.sttBudget():
		return invalid("transcribe_timeout %s is shorter than stt_timeout x attempts (%s)",
			c.TranscribeTimeout, c.sttBudget())
	}
	return nil
}

// sttBudget is the longest the whisper client can spend on one upload.
func (c *Config) sttBudget() time.Duration {
	attempts := time.Duration(c.STTRetries) + 1
	return c.STTTimeout*attempts + c.STTRetryDelay*time.Duration(c.STTRetries)
}
