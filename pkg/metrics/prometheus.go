// Package metrics provides Prometheus metrics for the xSteal service.
package metrics

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Scoring
	estimates        *prometheus.CounterVec
	attempts         *prometheus.CounterVec
	probability      *prometheus.HistogramVec
	tokens           prometheus.Histogram
	scoringLatency   prometheus.Histogram
	invalidInputs    prometheus.Counter
	duplicates       prometheus.Counter
	historyEvictions prometheus.Counter

	// Sessions
	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	storeLatency    *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// active pairs the global manager with the registry it registers into.
type active struct {
	manager  *Manager
	registry *prometheus.Registry
}

// current is swapped by Init while collectors may be recording.
var current atomic.Pointer[active] //nolint:gochecknoglobals // intentional global for singleton metrics manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Init()
}

// Init rebuilds the global manager from opts on a fresh registry. Call it
// at startup, before any handler captures GetRegistry.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(opts[:len(opts):len(opts)], WithPrometheusRegistry(registry))
	current.Store(&active{manager: NewManager(opts...), registry: registry})
}

func manager() *Manager {
	return current.Load().manager
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "xsteal",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
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
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.estimates = auto.NewCounterVec(
		m.counterOpts("estimates_total", "Total number of xSteal estimates by variant"),
		[]string{"variant"},
	)
	m.attempts = auto.NewCounterVec(
		m.counterOpts("attempts_total", "Total number of recorded attempts by variant and outcome"),
		[]string{"variant", "outcome"},
	)
	m.probability = auto.NewHistogramVec(
		m.histogramOpts("probability", "Distribution of xSteal probabilities", prometheus.LinearBuckets(0.1, 0.1, 10)),
		[]string{"variant"},
	)
	m.tokens = auto.NewHistogram(
		m.histogramOpts("tokens", "Distribution of token rewards", prometheus.LinearBuckets(-0.8, 0.2, 10)),
	)
	m.scoringLatency = auto.NewHistogram(
		m.histogramOpts("scoring_latency_milliseconds", "Scoring latency in milliseconds", m.histogramBuckets),
	)
	m.invalidInputs = auto.NewCounter(m.counterOpts("invalid_input_total", "Total number of rejected metric sets"))
	m.duplicates = auto.NewCounter(m.counterOpts("attempts_duplicate_total", "Total number of duplicate attempt IDs"))
	m.historyEvictions = auto.NewCounter(m.counterOpts("history_evictions_total", "Total number of attempts evicted from history windows"))

	m.sessionsActive = auto.NewGauge(m.gaugeOpts("sessions_active", "Current number of sessions"))
	m.sessionsCreated = auto.NewCounter(m.counterOpts("sessions_created_total", "Total number of sessions created"))
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("session_store_latency_milliseconds", "Session store operation latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Allocated heap memory in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Current number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets),
	)
}

// Scoring metrics.

// RecordEstimate counts one estimate and observes its probability.
func RecordEstimate(variant string, probability float64) {
	manager().estimates.WithLabelValues(variant).Inc()
	manager().probability.WithLabelValues(variant).Observe(probability)
}

// RecordAttempt counts a recorded attempt and observes its reward.
func RecordAttempt(variant, outcome string, tokens float64) {
	manager().attempts.WithLabelValues(variant, outcome).Inc()
	manager().tokens.Observe(tokens)
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	manager().scoringLatency.Observe(latencyMs)
}

// RecordInvalidInput increments the rejected input counter.
func RecordInvalidInput() {
	manager().invalidInputs.Inc()
}

// RecordDuplicateAttempt increments the duplicate attempt counter.
func RecordDuplicateAttempt() {
	manager().duplicates.Inc()
}

// RecordHistoryEviction increments the eviction counter.
func RecordHistoryEviction() {
	manager().historyEvictions.Inc()
}

// Session metrics.

// UpdateSessionsActive sets the number of live sessions.
func UpdateSessionsActive(count int) {
	manager().sessionsActive.Set(float64(count))
}

// RecordSessionCreated increments the created sessions counter.
func RecordSessionCreated() {
	manager().sessionsCreated.Inc()
}

// RecordStoreLatency records a session store operation latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	manager().storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	manager().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	manager().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	manager().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	manager().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	manager().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	manager().systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	manager().systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}

// CounterValue sums every series of the named metric family in the custom
// registry. name is given without the namespace and subsystem prefix.
func CounterValue(name string) (float64, error) {
	a := current.Load()
	name = prometheus.BuildFQName(a.manager.namespace, a.manager.subsystem, name)
	families, err := a.registry.Gather()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGatherFailed, err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var sum float64
		for _, metric := range f.GetMetric() {
			sum += sampleValue(metric)
		}
		return sum, nil
	}
	return 0, nil
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetHistogram() != nil:
		return float64(m.GetHistogram().GetSampleCount())
	}
	return 0
}
