package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"github.com/okian/medscribe/internal/domain/types"
	"github.com/okian/medscribe/pkg/logger"
	"github.com/okian/medscribe/pkg/metrics"
)

const (
	backendWhisper        = "whisper"
	defaultModel          = "base"
	defaultResponseFormat = "verbose_json"
	defaultTimeout        = 60 * time.Second
	defaultRetries        = 3
	defaultRetryDelay     = 500 * time.Millisecond
	maxErrorBody          = 256
)

// whisperResponse covers both the json and verbose_json answers of
// OpenAI-compatible /v1/audio/transcriptions endpoints.
type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// WhisperClient posts uploads to an OpenAI-compatible transcription endpoint
// (OpenAI, faster-whisper-server, whisper.cpp server, LocalAI).
type WhisperClient struct {
	url            string
	apiKey         string
	model          string
	language       string
	responseFormat string
	timeout        time.Duration
	retries        uint
	retryDelay     time.Duration
	client         *resty.Client
}

// NewWhisperClient creates a client for the endpoint at url.
func NewWhisperClient(url string, opts ...Option) *WhisperClient {
	c := &WhisperClient{
		url:            url,
		model:          defaultModel,
		responseFormat: defaultResponseFormat,
		timeout:        defaultTimeout,
		retries:        defaultRetries,
		retryDelay:     defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = resty.New()
	}
	c.client.SetTimeout(c.timeout).SetHeader("Accept", "application/json")
	return c
}

// Name implements Transcriber.
func (c *WhisperClient) Name() string { return backendWhisper }

// Transcribe uploads u and returns the recognised text. Transport errors,
// 5xx, 408 and 429 are retried; other 4xx answers fail immediately.
func (c *WhisperClient) Transcribe(ctx context.Context, u types.Upload) (types.Transcript, error) {
	var out types.Transcript
	err := retry.Do(
		func() error {
			var err error
			out, err = c.attempt(ctx, u)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.retries+1),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(Retryable),
		retry.OnRetry(func(n uint, err error) {
			metrics.RecordSTTRetry()
			logger.Get().Warn(ctx, "retrying transcription",
				logger.String("file", u.Filename),
				logger.Int("attempt", int(n)+1),
				logger.Error(err))
		}),
	)
	if err != nil {
		return types.Transcript{}, err
	}
	return out, nil
}

func (c *WhisperClient) attempt(ctx context.Context, u types.Upload) (types.Transcript, error) {
	f, err := os.Open(u.Path)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer func() { _ = f.Close() }()

	form := map[string]string{
		"model":           c.model,
		"response_format": c.responseFormat,
	}
	if c.language != "" {
		form["language"] = c.language
	}

	req := c.client.R().
		SetContext(ctx).
		SetFileReader("file", u.Filename, f).
		SetFormData(form)
	if c.apiKey != "" {
		req = req.SetAuthToken(c.apiKey)
	}

	resp, err := req.Post(c.url)
	if err != nil {
		metrics.RecordSTTRequest(backendWhisper, "error")
		return types.Transcript{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	metrics.RecordSTTRequest(backendWhisper, strconv.Itoa(resp.StatusCode()))

	if resp.IsError() {
		body := resp.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return types.Transcript{}, &StatusError{StatusCode: resp.StatusCode(), Body: body}
	}

	var wr whisperResponse
	if err := json.Unmarshal(resp.Body(), &wr); err != nil {
		return types.Transcript{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return types.Transcript{
		Text:     strings.TrimSpace(wr.Text),
		Language: wr.Language,
		Duration: time.Duration(wr.Duration * float64(time.Second)),
	}, nil
}
