package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/storepulse/internal/middleware"
)

// readinessTimeout bounds all dependency checks of one readiness probe.
const readinessTimeout = 5 * time.Second

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check results reported per dependency.
const (
	checkOK       = "ok"
	checkError    = "error"
	checkDegraded = "degraded"
)

// dependency is one readiness check. A failing critical dependency makes the
// service unready; any other failure only degrades it.
type dependency struct {
	name     string
	checker  HealthChecker
	critical bool
}

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	deps   []dependency
	logger *slog.Logger
}

// HealthHandlersConfig configures the health check handlers. Nil checkers are skipped.
type HealthHandlersConfig struct {
	// DBChecker is critical: alerts cannot be served without the database.
	DBChecker HealthChecker
	// RedisChecker and SourceChecker only degrade. The rate limiter fails
	// open and dashboard aggregates fall back while the breaker is open.
	RedisChecker  HealthChecker
	SourceChecker HealthChecker
	Logger        *slog.Logger
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &HealthHandlers{logger: logger}
	for _, d := range []dependency{
		{"database", config.DBChecker, true},
		{"redis", config.RedisChecker, false},
		{"event_source", config.SourceChecker, false},
	} {
		if d.checker != nil {
			h.deps = append(h.deps, d)
		}
	}
	return h
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
// Returns 200 whenever the process can respond.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": checkOK},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe).
// Returns 503 when the database is unreachable. Redis and the event source
// breaker are reported as "degraded" without failing the probe.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	// The Prometheus registry is always initialized.
	checks := map[string]string{"metrics": checkOK}
	status, statusCode := "healthy", http.StatusOK

	for _, d := range h.deps {
		err := d.checker.HealthCheck(ctx)
		switch {
		case err == nil:
			checks[d.name] = checkOK
		case d.critical:
			checks[d.name] = checkError
			status, statusCode = "unhealthy", http.StatusServiceUnavailable
			h.logger.WarnContext(ctx, "dependency health check failed", "dependency", d.name, "error", err)
		default:
			checks[d.name] = checkDegraded
			if statusCode == http.StatusOK {
				status = "degraded"
			}
			h.logger.WarnContext(ctx, "dependency degraded", "dependency", d.name, "error", err)
		}
	}

	writeJSON(w, r, statusCode, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
