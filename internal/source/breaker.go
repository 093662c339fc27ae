package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/onnwee/storepulse/internal/heatmap"
	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/visit"
)

// BreakerConfig tunes the circuit breaker around an EventSource.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset.
	Interval time.Duration
	// Timeout spent open before probing again.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
}

// DefaultBreakerConfig returns the breaker settings used in production.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerSource wraps an EventSource with a circuit breaker so a failing database is
// not hammered by every dashboard refresh. Rejected calls fail fast with
// ErrSourceUnavailable, which the aggregates treat like any other outage.
type BreakerSource struct {
	next    EventSource
	cb      *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
	metrics *Metrics
}

// NewBreakerSource wraps next. metrics may be nil.
func NewBreakerSource(next EventSource, cfg BreakerConfig, logger *slog.Logger, metrics *Metrics) *BreakerSource {
	if logger == nil {
		logger = slog.Default()
	}
	b := &BreakerSource{next: next, logger: logger, metrics: metrics}

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "event-source",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		// Caller cancellations say nothing about the database's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("event source breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
			b.metrics.SetBreakerState(stateValue(to))
		},
	})
	return b
}

// State reports the breaker's current state.
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}

// VisitEvents implements EventSource.
func (b *BreakerSource) VisitEvents(ctx context.Context, start, end time.Time) ([]visit.Event, error) {
	return execute(b, KindVisit, func() ([]visit.Event, error) {
		return b.next.VisitEvents(ctx, start, end)
	})
}

// HourlyTotals implements EventSource.
func (b *BreakerSource) HourlyTotals(ctx context.Context, since time.Time) ([]visit.HourlyTotal, error) {
	return execute(b, KindHourly, func() ([]visit.HourlyTotal, error) {
		return b.next.HourlyTotals(ctx, since)
	})
}

// QueueSnapshots implements EventSource.
func (b *BreakerSource) QueueSnapshots(ctx context.Context, since time.Time, zones []string) ([]queue.Snapshot, error) {
	return execute(b, KindQueue, func() ([]queue.Snapshot, error) {
		return b.next.QueueSnapshots(ctx, since, zones)
	})
}

// HeatmapPoints implements EventSource.
func (b *BreakerSource) HeatmapPoints(ctx context.Context, date time.Time, limit int) ([]heatmap.Point, error) {
	return execute(b, KindHeatmap, func() ([]heatmap.Point, error) {
		return b.next.HeatmapPoints(ctx, date, limit)
	})
}

// execute runs fn through the breaker and restores its static result type.
func execute[T any](b *BreakerSource, kind string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Debug("event source call rejected by breaker", "kind", kind, "error", err)
		}
		return zero, unavailable(kind, err)
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s: unexpected result type %T", ErrSourceUnavailable, kind, result)
	}
	return typed, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
