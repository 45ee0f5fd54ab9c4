package stt

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// Option applies a configuration option to the WhisperClient.
type Option func(*WhisperClient)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *WhisperClient) {
		c.apiKey = key
	}
}

// WithModel sets the model form field, e.g. "base" or "whisper-1".
func WithModel(model string) Option {
	return func(c *WhisperClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLanguage pins the spoken language; empty lets the engine detect it.
func WithLanguage(lang string) Option {
	return func(c *WhisperClient) {
		c.language = lang
	}
}

// WithResponseFormat sets the response_format form field.
func WithResponseFormat(format string) Option {
	return func(c *WhisperClient) {
		if format != "" {
			c.responseFormat = format
		}
	}
}

// WithTimeout bounds a single upstream attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *WhisperClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a failed attempt is repeated.
func WithRetries(n uint) Option {
	return func(c *WhisperClient) {
		c.retries = n
	}
}

// WithRetryDelay sets the base delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *WhisperClient) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithRestyClient replaces the underlying HTTP client.
func WithRestyClient(rc *resty.Client) Option {
	return func(c *WhisperClient) {
		if rc != nil {
			c.client = rc
		}
	}
}
