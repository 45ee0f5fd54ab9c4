package smoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const retryWait = 200 * time.Millisecond

// ErrUnexpectedStatus is returned when the service answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError carries the status and error body of a failed call.
type StatusError struct {
	Status int
	Body   ErrorResponse
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v %d: %s (%s)", ErrUnexpectedStatus, e.Status, e.Body.Error, e.Body.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Client talks to the medscribe HTTP API.
type Client struct {
	rc *resty.Client
}

// NewClient returns a client for baseURL. Requests answered with 429 or
// 5xx are retried up to retries times.
func NewClient(baseURL string, timeout time.Duration, retries int) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(retries).
		SetRetryWaitTime(retryWait).
		SetRetryResetReaders(true).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{rc: rc}
}

// Health calls GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	var out StatusResponse
	resp, err := c.rc.R().SetContext(ctx).SetResult(&out).SetError(&ErrorResponse{}).Get("/healthz")
	if err := check(resp, err); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("health status %q", out.Status)
	}
	return nil
}

// Summarize calls POST /api/summarize.
func (c *Client) Summarize(ctx context.Context, transcript string) (SummaryResponse, error) {
	var out SummaryResponse
	resp, err := c.rc.R().SetContext(ctx).
		SetBody(map[string]string{"transcript": transcript}).
		SetResult(&out).SetError(&ErrorResponse{}).
		Post("/api/summarize")
	return out, check(resp, err)
}

// Sync calls POST /api/fhir-sync with payload.
func (c *Client) Sync(ctx context.Context, payload any) (StatusResponse, error) {
	var out StatusResponse
	resp, err := c.rc.R().SetContext(ctx).
		SetBody(payload).
		SetResult(&out).SetError(&ErrorResponse{}).
		Post("/api/fhir-sync")
	return out, check(resp, err)
}

// Transcribe uploads audio as the "file" part of POST /api/transcribe.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (TranscribeResponse, error) {
	var out TranscribeResponse
	resp, err := c.rc.R().SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(audio)).
		SetResult(&out).SetError(&ErrorResponse{}).
		Post("/api/transcribe")
	return out, check(resp, err)
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		se := &StatusError{Status: resp.StatusCode()}
		if e, ok := resp.Error().(*ErrorResponse); ok && e != nil {
			se.Body = *e
		}
		return se
	}
	return nil
}
