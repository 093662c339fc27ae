package api

import (
	"context"
	"net/http"

	"github.com/onnwee/storepulse/internal/dashboard"
	"github.com/onnwee/storepulse/internal/heatmap"
	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/visit"
)

// DashboardService computes the dashboard aggregates. Every method degrades
// to a fallback instead of failing, so handlers only reject bad input.
type DashboardService interface {
	Overview(ctx context.Context, r visit.TimeRange) dashboard.Overview
	Stats(ctx context.Context) visit.DashboardStats
	CustomerFlow(ctx context.Context, r visit.TimeRange) []visit.FlowPoint
	Occupancy(ctx context.Context, r visit.TimeRange) []visit.FlowPoint
	CurrentVisitors(ctx context.Context) int
	WeeklyFlow(ctx context.Context) []visit.DayBucket
	Demographics(ctx context.Context) []visit.DemographicBucket
	QueueStatus(ctx context.Context) []queue.Status
	Heatmap(ctx context.Context) []heatmap.Point
}

// Flow views selectable with ?view=.
const (
	ViewFlow      = "flow"
	ViewOccupancy = "occupancy"
)

// DashboardHandlers serves the /api/dashboard endpoints.
type DashboardHandlers struct {
	svc DashboardService
}

// NewDashboardHandlers creates handlers backed by svc.
func NewDashboardHandlers(svc DashboardService) *DashboardHandlers {
	return &DashboardHandlers{svc: svc}
}

// CurrentVisitorsResponse is the body of GET /api/dashboard/current.
type CurrentVisitorsResponse struct {
	CurrentVisitors int `json:"currentVisitors"`
}

// Overview handles GET /api/dashboard?range=.
func (h *DashboardHandlers) Overview(w http.ResponseWriter, r *http.Request) {
	tr, ok := parseRange(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, h.svc.Overview(r.Context(), tr))
}

// Stats handles GET /api/dashboard/stats.
func (h *DashboardHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.Stats(r.Context()))
}

// Flow handles GET /api/dashboard/flow?range=&view=. The default view is the
// per-hour presence count; view=occupancy returns the running entry/exit balance.
func (h *DashboardHandlers) Flow(w http.ResponseWriter, r *http.Request) {
	tr, ok := parseRange(w, r)
	if !ok {
		return
	}
	switch view := r.URL.Query().Get("view"); view {
	case "", ViewFlow:
		writeJSON(w, r, http.StatusOK, h.svc.CustomerFlow(r.Context(), tr))
	case ViewOccupancy:
		writeJSON(w, r, http.StatusOK, h.svc.Occupancy(r.Context(), tr))
	default:
		writeCodedError(w, r, ErrCodeInvalidRange, "view must be one of flow, occupancy")
	}
}

// Occupancy handles GET /api/dashboard/occupancy?range=.
func (h *DashboardHandlers) Occupancy(w http.ResponseWriter, r *http.Request) {
	tr, ok := parseRange(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, h.svc.Occupancy(r.Context(), tr))
}

// CurrentVisitors handles GET /api/dashboard/current.
func (h *DashboardHandlers) CurrentVisitors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, CurrentVisitorsResponse{CurrentVisitors: h.svc.CurrentVisitors(r.Context())})
}

// Weekly handles GET /api/dashboard/weekly.
func (h *DashboardHandlers) Weekly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.WeeklyFlow(r.Context()))
}

// Demographics handles GET /api/dashboard/demographics.
func (h *DashboardHandlers) Demographics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.Demographics(r.Context()))
}

// Queue handles GET /api/dashboard/queue.
func (h *DashboardHandlers) Queue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.QueueStatus(r.Context()))
}

// Heatmap handles GET /api/dashboard/heatmap.
func (h *DashboardHandlers) Heatmap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.Heatmap(r.Context()))
}

// parseRange reads ?range=, writing a 400 and returning false when it is unknown.
func parseRange(w http.ResponseWriter, r *http.Request) (visit.TimeRange, bool) {
	tr, err := visit.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		writeCodedError(w, r, ErrCodeInvalidRange, visit.ErrInvalidTimeRange.Error())
		return "", false
	}
	return tr, true
}
