// Package metrics provides Prometheus metrics for the SmartBizIQ gateway.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Manager manages all Prometheus metrics for the gateway.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Backend Metrics - calls to the external analytics service
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec

	// Reconciliation Metrics
	historicalRecords      prometheus.Counter
	historicalNaNValues    prometheus.Counter
	forecastPointsRetained prometheus.Counter
	forecastPointsDropped  prometheus.Counter
	missingColumnErrors    prometheus.Counter

	// Session Metrics
	activeSessions     prometheus.Gauge
	sessionsExpired    prometheus.Counter
	modelRuns          prometheus.Gauge
	inflightRequests   prometheus.Gauge
	inflightRejections *prometheus.CounterVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Latency buckets in milliseconds used when no buckets are configured.
var defaultHistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // fixed default

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager and its registry with ones built from opts.
// It must be called before any handler exposing GetRegistry is created.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	customRegistry = registry
	globalManager = NewManager(append(append([]Option{}, opts...), WithPrometheusRegistry(registry))...)
}

// LatencyBuckets returns the default latency buckets below limit followed by
// limit itself, so calls that run up to a timeout still land in a finite
// bucket. A non-positive limit returns nil.
func LatencyBuckets(limit time.Duration) []float64 {
	top := float64(limit.Milliseconds())
	if top <= 0 {
		return nil
	}
	out := make([]float64, 0, len(defaultHistogramBuckets)+1)
	for _, b := range defaultHistogramBuckets {
		if b < top {
			out = append(out, b)
		}
	}
	return append(out, top)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "smartbiz",
		subsystem:        "gateway",
		histogramBuckets: defaultHistogramBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.backendRequests = auto.NewCounterVec(
		m.counterOpts("backend_requests_total", "Calls made to the analytics backend by operation and outcome"),
		[]string{"operation", "status_code"},
	)
	m.backendLatency = auto.NewHistogramVec(
		m.histogramOpts("backend_latency_milliseconds", "Analytics backend call latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)
	m.backendErrors = auto.NewCounterVec(
		m.counterOpts("backend_errors_total", "Failed analytics backend calls by operation and kind"),
		[]string{"operation", "kind"},
	)

	m.historicalRecords = auto.NewCounter(m.counterOpts("historical_records_total", "Historical CSV records parsed"))
	m.historicalNaNValues = auto.NewCounter(m.counterOpts("historical_nan_values_total", "Historical CSV values that failed numeric parsing"))
	m.forecastPointsRetained = auto.NewCounter(m.counterOpts("forecast_points_retained_total", "Forecast points kept after the historical boundary filter"))
	m.forecastPointsDropped = auto.NewCounter(m.counterOpts("forecast_points_dropped_total", "Forecast points dropped for overlapping historical periods"))
	m.missingColumnErrors = auto.NewCounter(m.counterOpts("missing_column_errors_total", "Uploads rejected because the period or value column was missing"))

	m.activeSessions = auto.NewGauge(m.gaugeOpts("active_sessions", "Sessions currently held in memory"))
	m.sessionsExpired = auto.NewCounter(m.counterOpts("sessions_expired_total", "Sessions removed by the idle sweeper"))
	m.modelRuns = auto.NewGauge(m.gaugeOpts("model_runs", "Model runs held across all session registries"))
	m.inflightRequests = auto.NewGauge(m.gaugeOpts("inflight_requests", "Requests currently holding an in-flight slot"))
	m.inflightRejections = auto.NewCounterVec(
		m.counterOpts("inflight_rejections_total", "Requests rejected because the same control was already in flight"),
		[]string{"control"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and error type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by HTTP endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordBackendRequest counts one backend call; statusCode is "0" for transport failures.
func RecordBackendRequest(operation, statusCode string) {
	globalManager.backendRequests.WithLabelValues(operation, statusCode).Inc()
}

// RecordBackendLatency records backend call latency in milliseconds.
func RecordBackendLatency(operation string, latencyMs float64) {
	globalManager.backendLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordBackendError counts a failed backend call.
func RecordBackendError(operation, kind string) {
	globalManager.backendErrors.WithLabelValues(operation, kind).Inc()
}

// RecordHistoricalRecords adds parsed historical records and how many of them were NaN.
func RecordHistoricalRecords(total, nan int) {
	globalManager.historicalRecords.Add(float64(total))
	globalManager.historicalNaNValues.Add(float64(nan))
}

// RecordForecastFilter adds retained and dropped forecast points.
func RecordForecastFilter(retained, dropped int) {
	globalManager.forecastPointsRetained.Add(float64(retained))
	globalManager.forecastPointsDropped.Add(float64(dropped))
}

// RecordMissingColumn counts an upload rejected by the header resolver.
func RecordMissingColumn() {
	globalManager.missingColumnErrors.Inc()
}

// UpdateActiveSessions sets the active sessions gauge.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordSessionsExpired counts sessions removed by the sweeper.
func RecordSessionsExpired(count int) {
	globalManager.sessionsExpired.Add(float64(count))
}

// UpdateModelRuns sets the model runs gauge.
func UpdateModelRuns(count int) {
	globalManager.modelRuns.Set(float64(count))
}

// UpdateInflightRequests sets the in-flight requests gauge.
func UpdateInflightRequests(count int64) {
	globalManager.inflightRequests.Set(float64(count))
}

// RecordInflightRejection counts a request rejected by the in-flight guard.
func RecordInflightRejection(control string) {
	globalManager.inflightRejections.WithLabelValues(control).Inc()
}

// RecordErrorByComponent increments error rate by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType increments error rate by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint increments error rate by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Gather collects the current state of the custom registry.
func Gather() ([]*dto.MetricFamily, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatherFailed, err)
	}
	return families, nil
}
