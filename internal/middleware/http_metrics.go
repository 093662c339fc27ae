// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strings"
	"time"
)

// staticRoutes are the routes whose path is already their label.
var staticRoutes = map[string]bool{
	"/api/dashboard":              true,
	"/api/dashboard/stats":        true,
	"/api/dashboard/flow":         true,
	"/api/dashboard/occupancy":    true,
	"/api/dashboard/current":      true,
	"/api/dashboard/weekly":       true,
	"/api/dashboard/demographics": true,
	"/api/dashboard/queue":        true,
	"/api/dashboard/heatmap":      true,
	"/api/alerts":                 true,
	"/health":                     true,
	"/ready":                      true,
	"/metrics":                    true,
	"/debug/profiling":            true,
}

// unmatchedRoute labels requests that hit no known route.
const unmatchedRoute = "unmatched"

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /api/alerts/123/status
// to /api/alerts/{id}/status.
func normalizePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/api/alerts/") {
		parts := strings.Split(path, "/")
		// ["", "api", "alerts", "{id}", "status"]
		if len(parts) == 5 && parts[3] != "" && parts[4] == "status" {
			return "/api/alerts/{id}/status"
		}
	}

	if strings.HasPrefix(path, "/debug/pprof") {
		return "/debug/pprof"
	}

	// Anything else (scanners, typos) would otherwise mint a new series per path.
	return unmatchedRoute
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	mrw.wroteHeader = true
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap returns the underlying writer.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exclude health check endpoints from metrics
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)
			next.ServeHTTP(mrw, r)

			// ContentLength is -1 when unknown (chunked uploads).
			requestSize := max(r.ContentLength, 0)
			metrics.ObserveRequest(r.Method, normalizePath(r.URL.Path), mrw.statusCode,
				time.Since(start), requestSize, mrw.size)
		})
	}
}
