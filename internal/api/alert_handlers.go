package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/storepulse/internal/alert"
)

// maxStatusBodyBytes bounds the PATCH body; {"status":"false_positive"} is tiny.
const maxStatusBodyBytes = 1 << 10

// AlertHandlers serves the /api/alerts endpoints.
type AlertHandlers struct {
	repo   alert.Repository
	logger *slog.Logger
}

// NewAlertHandlers creates handlers backed by repo. A nil logger uses slog.Default().
func NewAlertHandlers(repo alert.Repository, logger *slog.Logger) *AlertHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandlers{repo: repo, logger: logger}
}

// UpdateAlertStatusRequest is the body of PATCH /api/alerts/{id}/status.
type UpdateAlertStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/alerts?status=&limit=.
func (h *AlertHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter alert.ListFilter
	if s := q.Get("status"); s != "" {
		st, err := alert.ParseStatus(s)
		if err != nil {
			writeCodedError(w, r, ErrCodeInvalidStatus, "status must be one of new, viewed, in_progress, resolved, false_positive")
			return
		}
		filter.Status = st
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeCodedError(w, r, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	alerts, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	writeJSON(w, r, http.StatusOK, alerts)
}

// UpdateStatus handles PATCH /api/alerts/{id}/status.
func (h *AlertHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeCodedError(w, r, ErrCodeNotFound, "Alert not found")
		return
	}

	var req UpdateAlertStatusRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStatusBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeCodedError(w, r, ErrCodeBadRequest, "Request body must be JSON like {\"status\":\"resolved\"}")
		return
	}

	status, err := alert.ParseStatus(req.Status)
	if err != nil {
		writeCodedError(w, r, ErrCodeInvalidStatus, "status must be one of new, viewed, in_progress, resolved, false_positive")
		return
	}

	updated, err := h.repo.UpdateStatus(r.Context(), id, status)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "alert status updated", "alert_id", updated.ID, "status", updated.Status)
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *AlertHandlers) writeRepoError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, alert.ErrAlertNotFound):
		writeCodedError(w, r, ErrCodeNotFound, "Alert not found")
	case errors.Is(err, alert.ErrInvalidStatus):
		writeCodedError(w, r, ErrCodeInvalidStatus, "Invalid alert status")
	case errors.Is(err, alert.ErrStoreUnavailable):
		h.logger.WarnContext(r.Context(), "alert store unavailable", "error", err)
		writeCodedError(w, r, ErrCodeServiceUnavailable, "Alert store is unavailable, please retry")
	default:
		h.logger.ErrorContext(r.Context(), "alert operation failed", "error", err)
		writeCodedError(w, r, ErrCodeInternal, "Internal server error")
	}
}
