package source

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRowsRejected  = "source_rows_rejected_total"
	MetricQueryDuration = "source_query_duration_seconds"
	MetricQueryErrors   = "source_query_errors_total"
	MetricBreakerState  = "source_breaker_state"
)

// Metrics contains Prometheus metrics for event source queries.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	rowsRejected  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
	breakerState  prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rowsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRowsRejected,
				Help: "Total number of source rows skipped for missing or invalid fields",
			},
			[]string{"kind"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricQueryDuration,
				Help:    "Event source query duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 3.0},
			},
			[]string{"kind"},
		),
		queryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricQueryErrors,
				Help: "Total number of failed event source queries",
			},
			[]string{"kind"},
		),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricBreakerState,
			Help: "Event source circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRowsRejected counts one skipped row of the given kind.
func (m *Metrics) IncRowsRejected(kind string) {
	if m == nil {
		return
	}
	m.rowsRejected.WithLabelValues(kind).Inc()
}

// ObserveQuery records a query's duration and, when err is non-nil, its failure.
func (m *Metrics) ObserveQuery(kind string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(kind).Observe(seconds)
	if err != nil {
		m.queryErrors.WithLabelValues(kind).Inc()
	}
}

// SetBreakerState records the breaker state as a number.
func (m *Metrics) SetBreakerState(state float64) {
	if m == nil {
		return
	}
	m.breakerState.Set(state)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rowsRejected,
		m.queryDuration,
		m.queryErrors,
		m.breakerState,
	}
}
