// Package dashboard computes the dashboard aggregates from an event source.
//
// Every read operation resolves to a value. When the source query fails or runs past
// its timeout the aggregate degrades to its fallback (see fallback.go), the
// activation is logged, counted and recorded on the trace, and the caller renders
// placeholder figures instead of an error.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/storepulse/internal/heatmap"
	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/source"
	"github.com/onnwee/storepulse/internal/stats"
	"github.com/onnwee/storepulse/internal/tracing"
	"github.com/onnwee/storepulse/internal/visit"
)

// Defaults applied by NewService to zero Config fields.
const (
	DefaultQueryTimeout           = 3 * time.Second
	DefaultDemographicsWindowDays = 7
	weeklyWindow                  = 7 * 24 * time.Hour
)

// Config tunes the aggregate windows.
type Config struct {
	// QueryTimeout bounds each aggregate's source query.
	QueryTimeout time.Duration
	// QueueLookback is how far back queue snapshots count as current.
	QueueLookback time.Duration
	// DemographicsWindowDays is the trailing window, today included.
	DemographicsWindowDays int
	// QueueZones restricts the queue panel to these zones; empty means all.
	QueueZones []string
	// Location is the store's time zone. Calendar days are cut in this zone.
	Location *time.Location
}

// Service computes dashboard aggregates. It is safe for concurrent use.
type Service struct {
	source          source.EventSource
	cfg             Config
	now             func() time.Time
	logger          *slog.Logger
	metrics         *Metrics
	inconsistencies *stats.Inconsistencies
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock. Tests use this to pin "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics records aggregate timings, fallbacks and inconsistencies.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithInconsistencies accumulates data inconsistencies into counters.
func WithInconsistencies(i *stats.Inconsistencies) Option {
	return func(s *Service) { s.inconsistencies = i }
}

// NewService creates a Service reading from src.
func NewService(src source.EventSource, cfg Config, opts ...Option) *Service {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.QueueLookback <= 0 {
		cfg.QueueLookback = queue.DefaultLookback
	}
	if cfg.DemographicsWindowDays <= 0 {
		cfg.DemographicsWindowDays = DefaultDemographicsWindowDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Service{
		source: src,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Stats returns today's scalar figures.
func (s *Service) Stats(ctx context.Context) visit.DashboardStats {
	return run(ctx, s, AggregateStats, FallbackStats, func(ctx context.Context) (visit.DashboardStats, error) {
		events, err := s.todayEvents(ctx)
		if err != nil {
			return visit.DashboardStats{}, err
		}
		return visit.StatsFor(events, s.pair(ctx, events)), nil
	})
}

// CustomerFlow returns the per-hour count of visitors present, from paired visits.
func (s *Service) CustomerFlow(ctx context.Context, r visit.TimeRange) []visit.FlowPoint {
	return run(ctx, s, AggregateFlow, FallbackFlow, func(ctx context.Context) ([]visit.FlowPoint, error) {
		events, err := s.rangeEvents(ctx, r)
		if err != nil {
			return nil, err
		}
		return visit.FlowByHour(s.pair(ctx, events).Visits).Points(), nil
	})
}

// Occupancy returns the running net occupancy at the end of each hour.
func (s *Service) Occupancy(ctx context.Context, r visit.TimeRange) []visit.FlowPoint {
	return run(ctx, s, AggregateOccupancy, FallbackFlow, func(ctx context.Context) ([]visit.FlowPoint, error) {
		events, err := s.rangeEvents(ctx, r)
		if err != nil {
			return nil, err
		}
		series := visit.RunningCountByHour(events)
		for _, v := range series {
			if v < 0 {
				s.recordNegativeOccupancy(ctx, AggregateOccupancy)
				break
			}
		}
		return series.Points(), nil
	})
}

// CurrentVisitors returns today's entries minus exits. The value is not clamped.
func (s *Service) CurrentVisitors(ctx context.Context) int {
	return run(ctx, s, AggregateCurrent, FallbackCurrentVisitors, func(ctx context.Context) (int, error) {
		events, err := s.todayEvents(ctx)
		if err != nil {
			return 0, err
		}
		entries, exits := visit.CountActions(events)
		if entries < exits {
			s.recordNegativeOccupancy(ctx, AggregateCurrent)
		}
		return entries - exits, nil
	})
}

// WeeklyFlow returns visitor totals by weekday over the trailing seven days.
func (s *Service) WeeklyFlow(ctx context.Context) []visit.DayBucket {
	return run(ctx, s, AggregateWeekly, FallbackWeekly, func(ctx context.Context) ([]visit.DayBucket, error) {
		totals, err := s.source.HourlyTotals(ctx, s.now().Add(-weeklyWindow))
		if err != nil {
			return nil, err
		}
		for i := range totals {
			totals[i].DateHour = totals[i].DateHour.In(s.cfg.Location)
		}
		return visit.WeeklyRollup(totals), nil
	})
}

// Demographics returns the arrival breakdown by age group and gender over the
// trailing demographics window.
func (s *Service) Demographics(ctx context.Context) []visit.DemographicBucket {
	return run(ctx, s, AggregateDemographics, FallbackDemographics, func(ctx context.Context) ([]visit.DemographicBucket, error) {
		today := visit.DayStart(s.now(), s.cfg.Location)
		start := today.AddDate(0, 0, -(s.cfg.DemographicsWindowDays - 1))
		events, err := s.source.VisitEvents(ctx, start, today.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		return visit.Demographics(events), nil
	})
}

// QueueStatus returns the latest queue reading per checkout zone.
func (s *Service) QueueStatus(ctx context.Context) []queue.Status {
	return run(ctx, s, AggregateQueue, FallbackQueue, func(ctx context.Context) ([]queue.Status, error) {
		snapshots, err := s.source.QueueSnapshots(ctx, s.now().Add(-s.cfg.QueueLookback), s.cfg.QueueZones)
		if err != nil {
			return nil, err
		}
		return queue.Statuses(snapshots), nil
	})
}

// Heatmap returns today's heatmap. A day without data yields an empty list;
// only a source failure yields the placeholder points.
func (s *Service) Heatmap(ctx context.Context) []heatmap.Point {
	return run(ctx, s, AggregateHeatmap, FallbackHeatmap, func(ctx context.Context) ([]heatmap.Point, error) {
		points, err := s.source.HeatmapPoints(ctx, visit.DayStart(s.now(), s.cfg.Location), heatmap.MaxPoints)
		if err != nil {
			return nil, err
		}
		return heatmap.Normalize(points), nil
	})
}

// run computes one aggregate under its own timeout and span, substituting the
// fallback on error.
func run[T any](ctx context.Context, s *Service, a Aggregate, fallback func() T, compute func(context.Context) (T, error)) T {
	start := time.Now()
	ctx, endSpan := tracing.StartAggregateSpan(ctx, string(a))
	defer func() {
		s.metrics.ObserveAggregate(a, time.Since(start).Seconds())
		endSpan(nil)
	}()

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	v, err := compute(qctx)
	if err != nil {
		s.logger.WarnContext(ctx, "aggregate served from fallback",
			"aggregate", string(a), "error", err)
		s.metrics.IncFallback(a)
		tracing.RecordFallback(ctx, string(a), err)
		return fallback()
	}
	return v
}

func (s *Service) todayEvents(ctx context.Context) ([]visit.Event, error) {
	return s.rangeEvents(ctx, visit.RangeToday)
}

func (s *Service) rangeEvents(ctx context.Context, r visit.TimeRange) ([]visit.Event, error) {
	start, end := r.Bounds(s.now(), s.cfg.Location)
	return s.source.VisitEvents(ctx, start, end)
}

// pair matches events into visits and records what pairing had to discard.
func (s *Service) pair(ctx context.Context, events []visit.Event) visit.Pairing {
	p := visit.Pair(events)

	stray := len(p.StrayExits)
	negative := p.NegativeDurations()
	tracing.AddEvent(ctx, "pairing",
		attribute.Int("visits", len(p.Visits)),
		attribute.Int("open_entries", len(p.OpenEntries)),
		attribute.Int("stray_exits", stray),
		attribute.Int("negative_durations", negative),
	)
	if stray == 0 && negative == 0 {
		return p
	}

	s.logger.DebugContext(ctx, "pairing discarded inconsistent events",
		"stray_exits", stray, "negative_durations", negative)
	s.metrics.AddStrayExits(stray)
	s.metrics.AddNegativeDurations(negative)
	if s.inconsistencies != nil {
		s.inconsistencies.RecordStrayExits(stray)
		s.inconsistencies.RecordNegativeDurations(negative)
	}
	return p
}

func (s *Service) recordNegativeOccupancy(ctx context.Context, a Aggregate) {
	s.logger.DebugContext(ctx, "occupancy below zero", "aggregate", string(a))
	s.metrics.IncNegativeOccupancy()
	if s.inconsistencies != nil {
		s.inconsistencies.RecordNegativeOccupancy()
	}
}
