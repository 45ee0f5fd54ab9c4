package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/okian/medscribe/pkg/logger"
	"github.com/okian/medscribe/pkg/metrics"
)

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-ID"

// HTTP status code constants.
const (
	statusBadRequest      = 400
	statusNotFound        = 404
	statusTooLarge        = 413
	statusTooManyRequests = 429
	statusInternalError   = 500
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if wrapped.statusCode >= statusBadRequest {
			errorType := getErrorType(wrapped.statusCode)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errorType)
			metrics.RecordErrorByType(errorType, getErrorSeverity(wrapped.statusCode))
		}
	}
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusTooLarge:
		return "too_large"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// getErrorSeverity returns error severity based on HTTP status code.
func getErrorSeverity(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "high"
	case statusCode >= statusBadRequest:
		return "medium"
	default:
		return "low"
	}
}

// Recover turns handler panics into a JSON 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			metrics.RecordHTTPPanic()
			logger.Get().Error(r.Context(), "panic in handler",
				logger.String("path", r.URL.Path),
				logger.Any("panic", rec),
				logger.String("stack", string(debug.Stack())))
			writeError(w, r, http.StatusInternalServerError, "internal_error",
				NewKind("api.recover", fmt.Errorf("%w: panic", ErrInternal)))
		}()
		next.ServeHTTP(w, r)
	})
}

// AccessLog logs one line per request and echoes the request id.
// It expects middleware.RequestID to run first.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set(RequestIDHeader, reqID)
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		logger.Get().Info(r.Context(), "http request",
			logger.String("request_id", reqID),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", wrapped.statusCode),
			logger.Int64("bytes", wrapped.written),
			logger.String("remote", r.RemoteAddr),
			logger.Duration("duration", time.Since(start)),
		)
	})
}

// CORS allows browser clients from origins; "*" allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	})
}

// ChainOption configures Chain.
type ChainOption func(*chainOptions)

type chainOptions struct {
	trustProxyHeaders bool
}

// WithTrustedProxyHeaders takes the client address from X-Forwarded-For and
// X-Real-IP. Clients can set those headers freely, so enable it only behind
// a proxy that overwrites them.
func WithTrustedProxyHeaders(trust bool) ChainOption {
	return func(o *chainOptions) {
		o.trustProxyHeaders = trust
	}
}

// Chain wraps h with the standard middleware stack, outermost first:
// request id, real ip (opt-in), access log, panic recovery, CORS.
func Chain(h http.Handler, corsOrigins []string, opts ...ChainOption) http.Handler {
	var o chainOptions
	for _, opt := range opts {
		opt(&o)
	}

	h = CORS(corsOrigins)(h)
	h = Recover(h)
	h = AccessLog(h)
	if o.trustProxyHeaders {
		h = middleware.RealIP(h)
	}
	return middleware.RequestID(h)
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
