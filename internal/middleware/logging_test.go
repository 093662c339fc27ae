package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// testLogEntry represents a parsed JSON access log entry.
type testLogEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Route     string `json:"route"`
	Status    int    `json:"status"`
	LatencyMS *int64 `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	ErrorCode string `json:"error_code"`
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func parseEntry(t *testing.T, buf *bytes.Buffer) testLogEntry {
	t.Helper()
	var e testLogEntry
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return e
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		handler   http.HandlerFunc
		wantRoute string
		wantLevel string
		wantCode  int
		wantSize  int
		wantError string
	}{
		{
			name:   "implicit 200",
			method: http.MethodGet,
			path:   "/api/dashboard/current",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"currentVisitors":3}`))
			},
			wantRoute: "/api/dashboard/current", wantLevel: "INFO", wantCode: 200, wantSize: 21,
		},
		{
			name:   "invalid range",
			method: http.MethodGet,
			path:   "/api/dashboard/flow",
			handler: func(w http.ResponseWriter, r *http.Request) {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "invalid_range"))
				w.WriteHeader(http.StatusBadRequest)
			},
			wantRoute: "/api/dashboard/flow", wantLevel: "WARN", wantCode: 400, wantError: "invalid_range",
		},
		{
			name:   "store down",
			method: http.MethodPatch,
			path:   "/api/alerts/7/status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "service_unavailable"))
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantRoute: "/api/alerts/{id}/status", wantLevel: "ERROR", wantCode: 503, wantError: "service_unavailable",
		},
		{
			name:   "error without code",
			method: http.MethodGet,
			path:   "/nowhere",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantRoute: "unmatched", wantLevel: "WARN", wantCode: 404,
		},
		{
			name:   "code ignored on success",
			method: http.MethodGet,
			path:   "/api/alerts",
			handler: func(w http.ResponseWriter, r *http.Request) {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "stale"))
				_, _ = w.Write([]byte("[]"))
			},
			wantRoute: "/api/alerts", wantLevel: "INFO", wantCode: 200, wantSize: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := Logging(newTestLogger(&buf))(tt.handler)
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			e := parseEntry(t, &buf)
			if e.Msg != "request completed" {
				t.Errorf("msg = %q", e.Msg)
			}
			if e.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", e.Level, tt.wantLevel)
			}
			if e.Method != tt.method || e.Path != tt.path {
				t.Errorf("method/path = %s %s", e.Method, e.Path)
			}
			if e.Route != tt.wantRoute {
				t.Errorf("route = %q, want %q", e.Route, tt.wantRoute)
			}
			if e.Status != tt.wantCode {
				t.Errorf("status = %d, want %d", e.Status, tt.wantCode)
			}
			if e.Size != tt.wantSize {
				t.Errorf("size = %d, want %d", e.Size, tt.wantSize)
			}
			if e.ErrorCode != tt.wantError {
				t.Errorf("error_code = %q, want %q", e.ErrorCode, tt.wantError)
			}
			if e.LatencyMS == nil || *e.LatencyMS < 0 {
				t.Error("expected non-negative latency_ms")
			}
			if e.RequestID != "" {
				t.Errorf("request_id = %q without RequestID middleware", e.RequestID)
			}
		})
	}
}

func TestLogging_ErrorCodeFromRequestContext(t *testing.T) {
	var buf bytes.Buffer
	inner := Logging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	// An outer layer that tags the request instead of the writer.
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r.WithContext(SetErrorCode(r.Context(), "rate_limited")))
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	if e := parseEntry(t, &buf); e.ErrorCode != "rate_limited" {
		t.Errorf("error_code = %q, want rate_limited", e.ErrorCode)
	}
}

func TestLogging_WithRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := RequestID(Logging(newTestLogger(&buf))(http.NotFoundHandler()))

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/heatmap", nil)
	req.Header.Set(RequestIDHeader, "wall-display-2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if e := parseEntry(t, &buf); e.RequestID != "wall-display-2" {
		t.Errorf("request_id = %q", e.RequestID)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env       string
		wantJSON  bool
		wantDebug bool
	}{
		{"production", true, false},
		{"prod", true, false},
		{"development", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			logger := NewLogger(tt.env)
			_, isJSON := logger.Handler().(*slog.JSONHandler)
			if isJSON != tt.wantJSON {
				t.Errorf("JSON handler = %v, want %v", isJSON, tt.wantJSON)
			}
			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	_, _ = rw.Write([]byte("queue"))
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200 after an implicit header", rw.statusCode)
	}
	if rw.size != 5 {
		t.Errorf("size = %d, want 5", rw.size)
	}
}

// wrappingWriter stands in for writers added by middleware inside Logging.
type wrappingWriter struct {
	http.ResponseWriter
}

func (w *wrappingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func TestUpdateResponseContext_ThroughWrappedWriter(t *testing.T) {
	var buf bytes.Buffer
	h := Logging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &wrappingWriter{ResponseWriter: newMetricsResponseWriter(w)}
		UpdateResponseContext(ww, SetErrorCode(r.Context(), "service_unavailable"))
		ww.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	if e := parseEntry(t, &buf); e.ErrorCode != "service_unavailable" {
		t.Errorf("error_code = %q, want service_unavailable", e.ErrorCode)
	}
}

func TestUpdateResponseContext_PlainWriter(t *testing.T) {
	// Must not panic when no logging writer is in the chain.
	UpdateResponseContext(httptest.NewRecorder(), SetErrorCode(context.Background(), "not_found"))
	UpdateResponseContext(nil, SetErrorCode(context.Background(), "not_found"))
	UpdateResponseContext(httptest.NewRecorder(), context.Background())
}
