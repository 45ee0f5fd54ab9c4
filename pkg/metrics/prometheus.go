// Package metrics provides Prometheus metrics for the medscribe service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer
	customLabels     prometheus.Labels

	// Clinical API
	summaries        prometheus.Counter
	fhirSyncs        prometheus.Counter
	fhirSyncBytes    prometheus.Counter
	transcriptions   *prometheus.CounterVec
	transcribeTime   prometheus.Histogram
	uploadBytes      prometheus.Histogram
	transcriptLength prometheus.Histogram

	// Upstream speech-to-text
	sttRequests *prometheus.CounterVec
	sttRetries  prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueRejected      *prometheus.CounterVec
	queueWaitLatency   prometheus.Histogram
	workerCount        prometheus.Gauge
	workerBusy         prometheus.Gauge
	workerJobLatency   prometheus.Histogram
	workerJobsAbandons prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpPanics          prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// DefaultMillisecondBuckets suit request and queue latencies recorded in
// milliseconds, from a fast JSON reply up to a long transcription.
var DefaultMillisecondBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "medscribe",
		subsystem:        "api",
		histogramBuckets: DefaultMillisecondBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.summaries = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   m.subsystem,
		Name:        "summaries_total",
		Help:        "Total number of clinical summaries returned",
	})

	m.fhirSyncs = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   m.subsystem,
		Name:        "fhir_syncs_total",
		Help:        "Total number of FHIR sync payloads received",
	})

	m.fhirSyncBytes = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   m.subsystem,
		Name:        "fhir_sync_bytes_total",
		Help:        "Total size of FHIR sync payloads in bytes",
	})

	m.transcriptions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   m.subsystem,
		Name:        "transcriptions_total",
		Help:        "Transcription jobs by outcome",
	}, []string{"outcome"})

	m.transcribeTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   m.subsystem,
		Name:        "transcription_latency_milliseconds",
		Help:        "End-to-end transcription latency in milliseconds",
		Buckets:     []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	})

	m.uploadBytes = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   m.subsystem,
		Name:        "upload_size_bytes",
		Help:        "Size of uploaded audio files in bytes",
		Buckets:     prometheus.ExponentialBuckets(16*1024, 4, 8),
	})

	m.transcriptLength = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   m.subsystem,
		Name:        "transcript_length_chars",
		Help:        "Length of produced transcripts in characters",
		Buckets:     prometheus.ExponentialBuckets(16, 2, 10),
	})

	m.sttRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "stt",
		Name:        "requests_total",
		Help:        "Requests sent to the speech-to-text backend by backend and status",
	}, []string{"backend", "status"})

	m.sttRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "stt",
		Name:        "retries_total",
		Help:        "Retries issued against the speech-to-text backend",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "queue",
		Name:        "size",
		Help:        "Current number of queued transcription jobs",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "queue",
		Name:        "capacity",
		Help:        "Maximum number of queued transcription jobs",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "queue",
		Name:        "enqueued_total",
		Help:        "Transcription jobs accepted by the queue",
	})

	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "queue",
		Name:        "rejected_total",
		Help:        "Transcription jobs rejected by the queue by reason",
	}, []string{"reason"})

	m.queueWaitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "queue",
		Name:        "wait_milliseconds",
		Help:        "Time a job spent queued before a worker picked it up",
		Buckets:     m.histogramBuckets,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "worker",
		Name:        "count",
		Help:        "Number of transcription workers",
	})

	m.workerBusy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "worker",
		Name:        "busy",
		Help:        "Number of workers currently transcribing",
	})

	m.workerJobLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "worker",
		Name:        "job_milliseconds",
		Help:        "Time a worker spent on one job",
		Buckets:     []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	})

	m.workerJobsAbandons = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "worker",
		Name:        "abandoned_total",
		Help:        "Jobs skipped because the caller went away before processing",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "http",
		Name:        "request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.httpPanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "http",
		Name:        "panics_total",
		Help:        "Handler panics recovered by middleware",
	})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "errors",
		Name:        "by_component_total",
		Help:        "Errors by component and type",
	}, []string{"component", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "errors",
		Name:        "by_type_total",
		Help:        "Errors by type and severity",
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "errors",
		Name:        "by_endpoint_total",
		Help:        "Errors by endpoint, method and type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "system",
		Name:        "memory_usage_bytes",
		Help:        "Heap memory in use in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "system",
		Name:        "goroutine_count",
		Help:        "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		ConstLabels: m.customLabels,
		Subsystem:   "system",
		Name:        "gc_pause_time_milliseconds",
		Help:        "Average GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordSummary increments the summaries counter.
func RecordSummary() {
	globalManager.summaries.Inc()
}

// RecordFHIRSync counts one sync payload of the given size.
func RecordFHIRSync(sizeBytes int) {
	globalManager.fhirSyncs.Inc()
	globalManager.fhirSyncBytes.Add(float64(sizeBytes))
}

// RecordTranscription counts a finished transcription job by outcome
// (success, failed, rejected, cancelled).
func RecordTranscription(outcome string) {
	globalManager.transcriptions.WithLabelValues(outcome).Inc()
}

// RecordTranscriptionLatency records end-to-end transcription latency.
func RecordTranscriptionLatency(latencyMs float64) {
	globalManager.transcribeTime.Observe(latencyMs)
}

// RecordUploadSize records the size of an uploaded audio file.
func RecordUploadSize(sizeBytes int64) {
	globalManager.uploadBytes.Observe(float64(sizeBytes))
}

// RecordTranscriptLength records the number of characters in a transcript.
func RecordTranscriptLength(chars int) {
	globalManager.transcriptLength.Observe(float64(chars))
}

// RecordSTTRequest counts one upstream call; status is the HTTP status or "error".
func RecordSTTRequest(backend, status string) {
	globalManager.sttRequests.WithLabelValues(backend, status).Inc()
}

// RecordSTTRetry counts one retry against the upstream.
func RecordSTTRetry() {
	globalManager.sttRetries.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected counts a rejected enqueue (full, closed, context_cancelled).
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordQueueWait records how long a job waited in the queue.
func RecordQueueWait(latencyMs float64) {
	globalManager.queueWaitLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// WorkerBusy adjusts the busy worker gauge by delta.
func WorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordWorkerJobLatency records the time a worker spent on one job.
func RecordWorkerJobLatency(latencyMs float64) {
	globalManager.workerJobLatency.Observe(latencyMs)
}

// RecordWorkerJobAbandoned counts a job skipped after its caller left.
func RecordWorkerJobAbandoned() {
	globalManager.workerJobsAbandons.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPPanic counts a recovered handler panic.
func RecordHTTPPanic() {
	globalManager.httpPanics.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
