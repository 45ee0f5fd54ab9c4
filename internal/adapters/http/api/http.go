// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/okian/medscribe/internal/domain/types"
	"github.com/okian/medscribe/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SummaryDependencies
	SyncDependencies
	TranscribeDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	metricsHandler    *MetricsHandler
	summarizeHandler  *SummarizeHandler
	syncHandler       *SyncHandler
	transcribeHandler *TranscribeHandler
}

// ServerOption configures NewServer.
type ServerOption func(*serverOptions)

type serverOptions struct {
	transcribeTimeout time.Duration
}

// WithTranscribeTimeout bounds a whole /api/transcribe request, upload included.
func WithTranscribeTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.transcribeTimeout = d
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxUploadBytes int64, opts ...ServerOption) *Server {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		metricsHandler:    NewMetricsHandler(),
		summarizeHandler:  NewSummarizeHandler(deps),
		syncHandler:       NewSyncHandler(deps),
		transcribeHandler: NewTranscribeHandler(deps, maxUploadBytes, o.transcribeTimeout),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("/metrics", s.metricsHandler)
	mux.HandleFunc("/api/summarize", MetricsMiddleware(s.summarizeHandler.HandleSummarize, "summarize"))
	mux.HandleFunc("/api/fhir-sync", MetricsMiddleware(s.syncHandler.HandleSync, "fhir_sync"))
	mux.HandleFunc("/api/transcribe", MetricsMiddleware(s.transcribeHandler.HandleTranscribe, "transcribe"))
}

type statusResponse struct {
	Status string `json:"status"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newTranscribeResponse(t types.Transcript) transcribeResponse {
	return transcribeResponse{Transcript: t.Text}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = publicMessage(err)
		if status >= http.StatusInternalServerError {
			logger.Get().Error(r.Context(), "request failed",
				logger.String("path", r.URL.Path),
				logger.String("code", code),
				logger.Error(err))
		}
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// allowMethod answers 405 with an Allow header when r.Method differs.
func allowMethod(w http.ResponseWriter, r *http.Request, op, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
	return false
}

// readJSONBody decodes a JSON body into a raw message. An empty body
// yields nil, anything that is not a single JSON value is an error.
func readJSONBody(r *http.Request) (json.RawMessage, error) {
	dec := json.NewDecoder(r.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return raw, nil
}
