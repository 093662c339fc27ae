package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricQueryDuration     = "dashboard_query_duration_seconds"
	MetricFallbacks         = "dashboard_fallbacks_total"
	MetricStrayExits        = "dashboard_stray_exits_total"
	MetricNegativeDurations = "dashboard_negative_durations_total"
	MetricNegativeOccupancy = "dashboard_negative_occupancy_total"
)

// Metrics contains Prometheus metrics for dashboard aggregates.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	queryDuration     *prometheus.HistogramVec
	fallbacks         *prometheus.CounterVec
	strayExits        prometheus.Counter
	negativeDurations prometheus.Counter
	negativeOccupancy prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricQueryDuration,
				Help:    "Time to compute one dashboard aggregate, including the source query",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 3.0, 5.0},
			},
			[]string{"aggregate"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFallbacks,
				Help: "Total number of aggregates served from their fallback value",
			},
			[]string{"aggregate"},
		),
		strayExits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStrayExits,
			Help: "Total number of exit events left unpaired",
		}),
		negativeDurations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricNegativeDurations,
			Help: "Total number of paired visits with a negative duration",
		}),
		negativeOccupancy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricNegativeOccupancy,
			Help: "Total number of occupancy series with a negative hour",
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

// ObserveAggregate records how long an aggregate took.
func (m *Metrics) ObserveAggregate(a Aggregate, seconds float64) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(string(a)).Observe(seconds)
}

// IncFallback counts one fallback activation.
func (m *Metrics) IncFallback(a Aggregate) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(string(a)).Inc()
}

// AddStrayExits counts unpaired exits.
func (m *Metrics) AddStrayExits(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.strayExits.Add(float64(n))
}

// AddNegativeDurations counts visits with negative duration.
func (m *Metrics) AddNegativeDurations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.negativeDurations.Add(float64(n))
}

// IncNegativeOccupancy counts one occupancy series that dipped below zero.
func (m *Metrics) IncNegativeOccupancy() {
	if m == nil {
		return
	}
	m.negativeOccupancy.Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.queryDuration,
		m.fallbacks,
		m.strayExits,
		m.negativeDurations,
		m.negativeOccupancy,
	}
}
