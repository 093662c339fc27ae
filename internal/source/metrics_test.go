package source

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if got := len(m.Collectors()); got != 4 {
		t.Errorf("expected 4 collectors, got %d", got)
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	// Vector metrics only appear once a label set has been observed.
	m.IncRowsRejected(KindVisit)
	m.ObserveQuery(KindVisit, 0.01, errors.New("boom"))
	m.SetBreakerState(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}
	expected := map[string]bool{
		MetricRowsRejected:  false,
		MetricQueryDuration: false,
		MetricQueryErrors:   false,
		MetricBreakerState:  false,
	}
	for _, family := range families {
		if _, ok := expected[family.GetName()]; ok {
			expected[family.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %s not found in gathered metrics", name)
		}
	}

	if err := NewMetrics().Register(reg); err == nil {
		t.Error("second Register() should have returned an error")
	}
}

func TestMetrics_ObserveQuery(t *testing.T) {
	m := NewMetrics()

	m.ObserveQuery(KindQueue, 0.02, nil)
	m.ObserveQuery(KindQueue, 0.03, errors.New("timeout"))

	var metric dto.Metric
	if err := m.queryErrors.WithLabelValues(KindQueue).Write(&metric); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("query errors = %v, want 1", got)
	}

	metric.Reset()
	if err := m.queryDuration.WithLabelValues(KindQueue).(prometheus.Metric).Write(&metric); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := metric.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("query duration samples = %d, want 2", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncRowsRejected(KindVisit)
	m.ObserveQuery(KindVisit, 1, errors.New("x"))
	m.SetBreakerState(1)
}
