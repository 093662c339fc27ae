package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names exported by the middleware.
const (
	MetricRateLimitRequests     = "rate_limit_requests_total"
	MetricRateLimitBlocked      = "rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "rate_limit_redis_errors_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestSizeBytes  = "http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
)

var (
	requestLabels   = []string{"method", "path", "status"}
	rateLimitLabels = []string{"scope", "endpoint"}

	// Aggregates time out after a few seconds and fall back, so the
	// interesting tail ends there.
	durationBuckets     = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5}
	requestSizeBuckets  = prometheus.ExponentialBuckets(10, 10, 6)  // 10 B .. 1 MB
	responseSizeBuckets = prometheus.ExponentialBuckets(100, 10, 6) // 100 B .. 10 MB
)

// Metrics holds the HTTP and rate limiting collectors. A nil *Metrics is a
// valid no-op so middleware can be built without a registry.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	requestSize  *prometheus.HistogramVec
	responseSize *prometheus.HistogramVec

	limitChecks  *prometheus.CounterVec
	limitBlocked *prometheus.CounterVec
	storeErrors  prometheus.Counter
}

// NewMetrics builds unregistered collectors. Pass the result to Register.
func NewMetrics() *Metrics {
	histogram := func(name, help string, buckets []float64) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, requestLabels)
	}
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "HTTP requests served, by method, route and status",
		}, requestLabels),
		duration:     histogram(MetricHTTPRequestDuration, "HTTP request latency in seconds", durationBuckets),
		requestSize:  histogram(MetricHTTPRequestSizeBytes, "HTTP request body size in bytes", requestSizeBuckets),
		responseSize: histogram(MetricHTTPResponseSizeBytes, "HTTP response body size in bytes", responseSizeBuckets),

		limitChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitRequests,
			Help: "Requests checked against a rate limit, by limiter scope and route",
		}, rateLimitLabels),
		limitBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitBlocked,
			Help: "Requests rejected with 429, by limiter scope and route",
		}, rateLimitLabels),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitRedisErrors,
			Help: "Redis failures during rate limiting; each one let a request through",
		}),
	}
}

// Register adds every collector to reg, stopping at the first failure.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRequest records one served request. path must already be normalized.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requests.WithLabelValues(labels...).Inc()
	m.duration.WithLabelValues(labels...).Observe(elapsed.Seconds())
	m.requestSize.WithLabelValues(labels...).Observe(float64(requestSize))
	m.responseSize.WithLabelValues(labels...).Observe(float64(responseSize))
}

// RecordRateLimit counts one limiter decision for endpoint.
func (m *Metrics) RecordRateLimit(scope, endpoint string, allowed bool) {
	if m == nil {
		return
	}
	m.limitChecks.WithLabelValues(scope, endpoint).Inc()
	if !allowed {
		m.limitBlocked.WithLabelValues(scope, endpoint).Inc()
	}
}

// IncRateLimitRedisErrors counts a fail-open caused by Redis.
func (m *Metrics) IncRateLimitRedisErrors() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}

// Collectors returns every collector, for registries that want them directly.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests, m.duration, m.requestSize, m.responseSize,
		m.limitChecks, m.limitBlocked, m.storeErrors,
	}
}
