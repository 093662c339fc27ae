package dashboard

import (
	"github.com/onnwee/storepulse/internal/heatmap"
	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/visit"
)

// Aggregate names one dashboard figure. The names label metrics, spans and logs.
type Aggregate string

const (
	AggregateStats        Aggregate = "stats"
	AggregateFlow         Aggregate = "flow"
	AggregateOccupancy    Aggregate = "occupancy"
	AggregateCurrent      Aggregate = "current_visitors"
	AggregateWeekly       Aggregate = "weekly"
	AggregateDemographics Aggregate = "demographics"
	AggregateQueue        Aggregate = "queue_status"
	AggregateHeatmap      Aggregate = "heatmap"
)

// Aggregates lists every aggregate in the order the overview reports them.
var Aggregates = []Aggregate{
	AggregateStats,
	AggregateFlow,
	AggregateOccupancy,
	AggregateCurrent,
	AggregateWeekly,
	AggregateDemographics,
	AggregateQueue,
	AggregateHeatmap,
}

// FallbackWeeklyCounts is the illustrative Monday..Sunday series shown when the
// hourly totals cannot be read.
var FallbackWeeklyCounts = [7]int{245, 278, 312, 289, 356, 423, 398}

// The fallback policy: the value each aggregate resolves to when its source
// query fails or times out. Every function returns a fresh value.

// FallbackStats is the all-zero stats panel.
func FallbackStats() visit.DashboardStats {
	return visit.DashboardStats{}
}

// FallbackFlow is the all-zero 24-point series, used for both flow views.
func FallbackFlow() []visit.FlowPoint {
	var zero visit.HourlySeries
	return zero.Points()
}

// FallbackCurrentVisitors is zero.
func FallbackCurrentVisitors() int {
	return 0
}

// FallbackWeekly is the fixed illustrative week.
func FallbackWeekly() []visit.DayBucket {
	return visit.WeekFromCounts(FallbackWeeklyCounts)
}

// FallbackDemographics is an empty list. Demographic data is never fabricated.
func FallbackDemographics() []visit.DemographicBucket {
	return []visit.DemographicBucket{}
}

// FallbackQueue is the default three checkout zones, the same list queue.Statuses
// returns when no zone has a recent snapshot.
func FallbackQueue() []queue.Status {
	return queue.DefaultStatuses()
}

// FallbackHeatmap is the fixed five-point placeholder.
func FallbackHeatmap() []heatmap.Point {
	return heatmap.Fallback()
}
