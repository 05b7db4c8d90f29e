package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes recorded by the session store.
const (
	FetchAbsent    = "absent"
	FetchExpired   = "expired"
	FetchLocked    = "locked"
	FetchContended = "contended"
	FetchAcquired  = "acquired"
	FetchRead      = "read"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "sessionlock").
	Namespace string

	// Buckets are the histogram buckets for operation latency.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	opsTotal    *prometheus.CounterVec
	opErrors    *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	fetches     *prometheus.CounterVec
	releases    *prometheus.CounterVec
	sweptTotal  prometheus.Counter
	evictErrors prometheus.Counter
}

// NewMetrics creates and registers the collectors.
//
// Metrics collected:
//   - sessionlock_collection_ops_total: backend operations by op
//   - sessionlock_collection_errors_total: failed backend operations by op
//   - sessionlock_collection_op_duration_seconds: backend latency by op
//   - sessionlock_fetch_total: Fetch results by outcome
//   - sessionlock_release_total: token-guarded writes by op and result (applied|stale)
//   - sessionlock_swept_records_total: records removed by expired sweeps
//   - sessionlock_background_evict_errors_total: failed best-effort evictions of expired records
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "sessionlock",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		opsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "collection_ops_total",
			Help:      "Total number of backing collection operations",
		}, []string{"op"}),

		opErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "collection_errors_total",
			Help:      "Total number of failed backing collection operations",
		}, []string{"op"}),

		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "collection_op_duration_seconds",
			Help:      "Backing collection operation latency in seconds",
			Buckets:   config.Buckets,
		}, []string{"op"}),

		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "fetch_total",
			Help:      "Total number of session fetches by outcome",
		}, []string{"outcome"}),

		releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "release_total",
			Help:      "Total number of token-guarded writes by operation and result",
		}, []string{"op", "result"}),

		sweptTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "swept_records_total",
			Help:      "Total number of expired records removed by sweeps",
		}),

		evictErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "background_evict_errors_total",
			Help:      "Total number of failed best-effort evictions of expired records",
		}),
	}
}

// ObserveFetch counts one Fetch outcome.
func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

// ObserveGuardedWrite counts a token-guarded write that either applied or hit a stale token.
func (m *Metrics) ObserveGuardedWrite(op string, applied bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "stale"
	}
	m.releases.WithLabelValues(op, result).Inc()
}

// ObserveSweep counts records removed by a sweep.
func (m *Metrics) ObserveSweep(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTotal.Add(float64(n))
}

// ObserveEvictError counts a failed background eviction.
func (m *Metrics) ObserveEvictError() {
	if m == nil {
		return
	}
	m.evictErrors.Inc()
}
