package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/storepulse/internal/heatmap"
	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/tracing"
	"github.com/onnwee/storepulse/internal/visit"
)

// Overview is every aggregate computed for one dashboard render.
type Overview struct {
	Range           visit.TimeRange           `json:"range"`
	Stats           visit.DashboardStats      `json:"stats"`
	CustomerFlow    []visit.FlowPoint         `json:"customerFlow"`
	Occupancy       []visit.FlowPoint         `json:"occupancy"`
	CurrentVisitors int                       `json:"currentVisitors"`
	WeeklyFlow      []visit.DayBucket         `json:"weeklyFlow"`
	Demographics    []visit.DemographicBucket `json:"demographics"`
	QueueStatus     []queue.Status            `json:"queueStatus"`
	Heatmap         []heatmap.Point           `json:"heatmap"`
	GeneratedAt     time.Time                 `json:"generatedAt"`
}

// Overview computes all aggregates concurrently and joins on completion. The
// aggregates share no state and each one degrades to its own fallback, so a
// slow or failing query affects only its own field.
func (s *Service) Overview(ctx context.Context, r visit.TimeRange) Overview {
	ctx, endSpan := tracing.StartSpan(ctx, "dashboard_overview")
	defer endSpan(nil)

	o := Overview{Range: r, GeneratedAt: s.now()}

	// No task returns an error, so the group context is never cancelled early.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { o.Stats = s.Stats(gctx); return nil })
	g.Go(func() error { o.CustomerFlow = s.CustomerFlow(gctx, r); return nil })
	g.Go(func() error { o.Occupancy = s.Occupancy(gctx, r); return nil })
	g.Go(func() error { o.CurrentVisitors = s.CurrentVisitors(gctx); return nil })
	g.Go(func() error { o.WeeklyFlow = s.WeeklyFlow(gctx); return nil })
	g.Go(func() error { o.Demographics = s.Demographics(gctx); return nil })
	g.Go(func() error { o.QueueStatus = s.QueueStatus(gctx); return nil })
	g.Go(func() error { o.Heatmap = s.Heatmap(gctx); return nil })
	_ = g.Wait()

	return o
}
