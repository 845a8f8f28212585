// Package metrics provides Prometheus metrics for the devinfo service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the devinfo service.
type Manager struct {
	namespace        string
	lookupBuckets    []float64
	httpBuckets      []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Aggregator metrics
	sessionsStarted prometheus.Counter
	sessionsActive  prometheus.Gauge
	factOutcomes    *prometheus.CounterVec
	notices         *prometheus.CounterVec
	updatesDropped  prometheus.Counter
	lookupLatency   *prometheus.HistogramVec
	lookupFailures  *prometheus.CounterVec

	// Preference store metrics
	preferenceWrites prometheus.Counter
	preferenceErrors prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = newManager(WithPrometheusRegistry(customRegistry))
}

// newManager creates a new metrics manager with default configuration.
func newManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "devinfo",
		lookupBuckets:    []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		httpBuckets:      []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.sessionsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "aggregator",
		Name:        "sessions_started_total",
		Help:        "Total number of aggregation sessions started",
		ConstLabels: constLabels,
	})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "aggregator",
		Name:        "sessions_active",
		Help:        "Number of aggregation sessions currently collecting",
		ConstLabels: constLabels,
	})

	m.factOutcomes = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   "aggregator",
			Name:        "fact_outcomes_total",
			Help:        "Fact transitions out of the unresolved state by field and final state",
			ConstLabels: constLabels,
		},
		[]string{"field", "state"},
	)

	m.notices = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   "aggregator",
			Name:        "notices_total",
			Help:        "Informational notices surfaced to consumers by kind",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)

	m.updatesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "aggregator",
		Name:        "updates_dropped_total",
		Help:        "Source results discarded because the session stopped or the address was superseded",
		ConstLabels: constLabels,
	})

	m.lookupLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   "aggregator",
			Name:        "lookup_latency_milliseconds",
			Help:        "External lookup latency in milliseconds by step (address, location)",
			Buckets:     m.lookupBuckets,
			ConstLabels: constLabels,
		},
		[]string{"step"},
	)

	m.lookupFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   "aggregator",
			Name:        "lookup_failures_total",
			Help:        "External lookup failures by step",
			ConstLabels: constLabels,
		},
		[]string{"step"},
	)

	m.preferenceWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "preferences",
		Name:        "writes_total",
		Help:        "Total number of preference writes",
		ConstLabels: constLabels,
	})

	m.preferenceErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "preferences",
		Name:        "errors_total",
		Help:        "Total number of preference store errors",
		ConstLabels: constLabels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   "http",
			Name:        "request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.httpBuckets,
			ConstLabels: constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   "http",
			Name:        "errors_by_type_total",
			Help:        "HTTP errors by type and severity",
			ConstLabels: constLabels,
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   "http",
			Name:        "errors_by_endpoint_total",
			Help:        "HTTP errors by endpoint",
			ConstLabels: constLabels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_usage_bytes",
		Help:        "Heap memory in use in bytes",
		ConstLabels: constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: constLabels,
	})
}

// Enabled reports whether recording is active on the manager.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RecordSessionStarted counts a new session and marks it active.
func RecordSessionStarted() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsStarted.Inc()
	globalManager.sessionsActive.Inc()
}

// RecordSessionStopped marks a session as no longer active.
func RecordSessionStopped() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsActive.Dec()
}

// RecordFactOutcome counts a field leaving the unresolved state.
func RecordFactOutcome(field, state string) {
	if !globalManager.enabled {
		return
	}
	globalManager.factOutcomes.WithLabelValues(field, state).Inc()
}

// RecordNotice counts a surfaced notice.
func RecordNotice(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.notices.WithLabelValues(kind).Inc()
}

// RecordUpdateDropped counts a discarded source result.
func RecordUpdateDropped() {
	if !globalManager.enabled {
		return
	}
	globalManager.updatesDropped.Inc()
}

// RecordLookupLatency records an external lookup step latency in milliseconds.
func RecordLookupLatency(step string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.lookupLatency.WithLabelValues(step).Observe(latencyMs)
}

// RecordLookupFailure counts a failed external lookup step.
func RecordLookupFailure(step string) {
	if !globalManager.enabled {
		return
	}
	globalManager.lookupFailures.WithLabelValues(step).Inc()
}

// RecordPreferenceWrite counts a preference write.
func RecordPreferenceWrite() {
	if !globalManager.enabled {
		return
	}
	globalManager.preferenceWrites.Inc()
}

// RecordPreferenceError counts a preference store failure.
func RecordPreferenceError() {
	if !globalManager.enabled {
		return
	}
	globalManager.preferenceErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records errors by type and severity.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records errors by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// SetEnabled toggles recording on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom registry served at /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// SystemRefreshInterval is how often the global system gauges should be sampled.
func SystemRefreshInterval() time.Duration {
	return globalManager.refreshInterval
}
