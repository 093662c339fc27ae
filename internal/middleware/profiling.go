package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled exposes the pprof endpoints. Never set it in production:
	// profiles leak memory contents and code structure.
	Enabled bool

	// Environment is checked again here so a production deploy cannot
	// expose pprof even if Enabled slips through.
	Environment string

	// Logger receives the startup warning. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c ProfilingConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// active reports whether the endpoints are actually served.
func (c ProfilingConfig) active() bool {
	return c.Enabled && !IsProduction(c.Environment)
}

// profileEndpoints lists what Profiling serves under /debug/pprof.
var profileEndpoints = []string{
	"/debug/pprof/",
	"/debug/pprof/profile",
	"/debug/pprof/heap",
	"/debug/pprof/goroutine",
	"/debug/pprof/block",
	"/debug/pprof/mutex",
	"/debug/pprof/threadcreate",
	"/debug/pprof/allocs",
	"/debug/pprof/cmdline",
	"/debug/pprof/symbol",
	"/debug/pprof/trace",
}

// Profiling returns middleware that serves net/http/pprof under /debug/pprof
// when enabled outside production. Slow dashboard aggregates are easiest to
// chase with /debug/pprof/profile?seconds=N while replaying traffic.
// All other paths pass through.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		if !config.active() {
			config.logger().Error("refusing to enable profiling in production",
				"environment", config.Environment,
			)
			return next
		}

		config.logger().Warn("profiling endpoints enabled, development only",
			"environment", config.Environment,
			"endpoints", "/debug/pprof/*",
		)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/debug/pprof") {
				next.ServeHTTP(w, r)
				return
			}
			switch r.URL.Path {
			case "/debug/pprof/cmdline":
				pprof.Cmdline(w, r)
			case "/debug/pprof/profile":
				pprof.Profile(w, r)
			case "/debug/pprof/symbol":
				pprof.Symbol(w, r)
			case "/debug/pprof/trace":
				pprof.Trace(w, r)
			default:
				// Index also serves the named profiles (heap, goroutine, ...).
				pprof.Index(w, r)
			}
		})
	}
}

// profilingStatus is the body served by ProfilingStatus.
type profilingStatus struct {
	Enabled     bool     `json:"profiling_enabled"`
	Environment string   `json:"environment"`
	Status      string   `json:"status"`
	Endpoints   []string `json:"endpoints"`
}

// ProfilingStatus returns a handler reporting whether pprof is being served.
// Endpoints are listed only while it is.
func ProfilingStatus(config ProfilingConfig) http.HandlerFunc {
	body := profilingStatus{
		Enabled:     config.active(),
		Environment: config.Environment,
		Status:      "disabled",
		Endpoints:   []string{},
	}
	if body.Enabled {
		body.Status = "enabled"
		body.Endpoints = profileEndpoints
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			config.logger().Error("failed to write profiling status response", "error", err)
		}
	}
}
