package api

import (
	"net/http"
)

// RouterConfig holds the handlers mounted by NewRouter. Nil fields leave
// their routes unregistered.
type RouterConfig struct {
	Dashboard *DashboardHandlers
	Alerts    *AlertHandlers
	Health    *HealthHandlers

	// Metrics serves /metrics, usually promhttp.HandlerFor.
	Metrics http.Handler

	// AlertWriteLimit wraps the alert status route with a stricter limiter.
	AlertWriteLimit func(http.Handler) http.Handler
}

// NewRouter registers every API route on a new ServeMux. Unknown paths get
// the JSON 404 envelope instead of the mux's plain-text page.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	if d := cfg.Dashboard; d != nil {
		mux.HandleFunc("GET /api/dashboard", d.Overview)
		mux.HandleFunc("GET /api/dashboard/stats", d.Stats)
		mux.HandleFunc("GET /api/dashboard/flow", d.Flow)
		mux.HandleFunc("GET /api/dashboard/occupancy", d.Occupancy)
		mux.HandleFunc("GET /api/dashboard/current", d.CurrentVisitors)
		mux.HandleFunc("GET /api/dashboard/weekly", d.Weekly)
		mux.HandleFunc("GET /api/dashboard/demographics", d.Demographics)
		mux.HandleFunc("GET /api/dashboard/queue", d.Queue)
		mux.HandleFunc("GET /api/dashboard/heatmap", d.Heatmap)
	}

	if a := cfg.Alerts; a != nil {
		mux.HandleFunc("GET /api/alerts", a.List)
		var update http.Handler = http.HandlerFunc(a.UpdateStatus)
		if cfg.AlertWriteLimit != nil {
			update = cfg.AlertWriteLimit(update)
		}
		mux.Handle("PATCH /api/alerts/{id}/status", update)
	}

	if h := cfg.Health; h != nil {
		mux.HandleFunc("/health", h.Health)
		mux.HandleFunc("/ready", h.Ready)
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeCodedError(w, r, ErrCodeNotFound, "The requested resource was not found")
	})

	return mux
}
