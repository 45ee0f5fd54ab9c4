package api

import (
	"net/http"

	"github.com/okian/medscribe/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.healthz", http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// MetricsHandler serves the Prometheus exposition from the service registry.
type MetricsHandler struct {
	next http.Handler
}

// NewMetricsHandler creates a handler bound to the custom metrics registry.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		next: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.next.ServeHTTP(w, r)
}
