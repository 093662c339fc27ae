package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs a recording tracer provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestTracing_SpanNames(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/dashboard", "GET /api/dashboard"},
		{http.MethodGet, "/api/dashboard/flow", "GET /api/dashboard/flow"},
		{http.MethodGet, "/api/alerts", "GET /api/alerts"},
		{http.MethodPatch, "/api/alerts/3f2a9c4e-1b7d-4e1a-9a55-0c6d2f1e8b10/status", "PATCH /api/alerts/{id}/status"},
		{http.MethodGet, "/debug/pprof/heap", "GET /debug/pprof"},
		{http.MethodGet, "/nope/456", "GET unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rec := recordSpans(t)
			Tracing("storepulse-test")(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			spans := rec.Ended()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Name() != tt.want {
				t.Errorf("span name = %q, want %q", spans[0].Name(), tt.want)
			}
		})
	}
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	rec := recordSpans(t)

	var traceID, spanID string
	h := Tracing("storepulse-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, spanID = GetTraceID(r), GetSpanID(r)
	}))

	const parentTrace = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
	req.Header.Set("traceparent", "00-"+parentTrace+"-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if traceID != parentTrace {
		t.Errorf("trace ID = %q, want the caller's %q", traceID, parentTrace)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if got := spans[0].SpanContext().SpanID().String(); got != spanID {
		t.Errorf("span ID = %q, handler saw %q", got, spanID)
	}
	if got := spans[0].Parent().SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("parent span = %q", got)
	}
}

func TestTracing_SkipsHealthProbes(t *testing.T) {
	rec := recordSpans(t)
	h := Tracing("storepulse-test")(okHandler())

	for _, path := range []string{"/health", "/ready"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if n := len(rec.Ended()); n != 0 {
		t.Errorf("got %d spans for probes, want 0", n)
	}
}

func TestTracing_RecordsRequestID(t *testing.T) {
	rec := recordSpans(t)
	h := RequestID(Tracing("storepulse-test")(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/queue", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "request.id" && kv.Value.AsString() == "req-42" {
			return
		}
	}
	t.Errorf("request.id attribute missing: %v", spans[0].Attributes())
}

func TestTraceIDs_NoActiveSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	if id := GetTraceID(req); id != "" {
		t.Errorf("GetTraceID() = %q, want empty", id)
	}
	if id := GetSpanID(req); id != "" {
		t.Errorf("GetSpanID() = %q, want empty", id)
	}
}

func TestTracing_AccessLogCarriesTraceID(t *testing.T) {
	recordSpans(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Tracing("storepulse-test")(Logging(logger)(okHandler()))

	const parentTrace = "0af7651916cd43dd8448eb211c80319c"
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/weekly", nil)
	req.Header.Set("traceparent", "00-"+parentTrace+"-b7ad6b7169203331-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v (%s)", err, buf.String())
	}
	if entry.TraceID != parentTrace {
		t.Errorf("trace_id = %q, want %q", entry.TraceID, parentTrace)
	}
}
