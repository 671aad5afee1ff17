package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "hamrah").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for role verification
	// duration. Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) { c.ConstLabels = labels }
}

// WithBuckets sets the verification duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = registry }
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "hamrah",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics implements guard.Observer and session.Observer.
type Metrics struct {
	decisions      *prometheus.CounterVec
	verifyDuration prometheus.Histogram
	verifyFailures prometheus.Counter
	checksInflight prometheus.Gauge
	checkFailures  prometheus.Counter
}

// NewMetrics registers and returns the guard/session metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "guard_decisions_total",
			Help:        "Route guard decisions by rule and outcome.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"rule", "outcome"}),
		verifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "guard_role_verify_duration_seconds",
			Help:        "Duration of admin role verification calls.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),
		verifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "guard_role_verify_failures_total",
			Help:        "Role verification calls that failed and were denied.",
			ConstLabels: cfg.ConstLabels,
		}),
		checksInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "session_checks_inflight",
			Help:        "Session verification requests currently in flight.",
			ConstLabels: cfg.ConstLabels,
		}),
		checkFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "session_check_failures_total",
			Help:        "Session verification requests that failed.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// Decision implements guard.Observer.
func (m *Metrics) Decision(rule, outcome string) {
	m.decisions.WithLabelValues(rule, outcome).Inc()
}

// VerifyObserved implements guard.Observer.
func (m *Metrics) VerifyObserved(d time.Duration, err error) {
	m.verifyDuration.Observe(d.Seconds())
	if err != nil {
		m.verifyFailures.Inc()
	}
}

// CheckStarted implements session.Observer.
func (m *Metrics) CheckStarted() {
	m.checksInflight.Inc()
}

// CheckFinished implements session.Observer.
func (m *Metrics) CheckFinished(err error) {
	m.checksInflight.Dec()
	if err != nil {
		m.checkFailures.Inc()
	}
}
