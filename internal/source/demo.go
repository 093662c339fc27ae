package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/storepulse/internal/heatmap"
	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/visit"
)

// demoArrivals is the number of customers entering in each hour of a demo day.
var demoArrivals = [visit.HoursPerDay]int{
	8: 12, 9: 18, 10: 24, 11: 30, 12: 34, 13: 30, 14: 26,
	15: 28, 16: 32, 17: 36, 18: 28, 19: 20, 20: 14, 21: 9, 22: 5,
}

// demoWeek holds the Monday-first daily totals spread over the trailing week.
var demoWeek = [7]int{245, 278, 312, 289, 356, 423, 398}

var (
	demoAgeGroups = []string{"18-25", "26-35", "36-50", "50+"}
	demoGenders   = []string{"male", "female"}
)

// SeedDemo fills m with a deterministic store day up to now: paired entries and
// exits following a typical footfall curve, a trailing week of hourly totals,
// current queue readings for three checkout lanes and today's heatmap.
// Visitors whose stay would end after now are left inside.
func SeedDemo(m *MemorySource, now time.Time, loc *time.Location) {
	today := visit.DayStart(now, loc)
	nowOfDay := visit.TimeOfDay(int(now.In(loc).Sub(today) / time.Second))

	type stamped struct {
		at visit.TimeOfDay
		e  visit.Event
	}
	var timeline []stamped
	visitor := 0
	for hour, arrivals := range demoArrivals {
		for i := 0; i < arrivals; i++ {
			visitor++
			entry := visit.NewTimeOfDay(hour, (i*7)%60, (visitor*13)%60)
			if entry > nowOfDay {
				continue
			}
			in := visit.Event{
				Date:      today,
				TimeOfDay: entry,
				Action:    visit.ActionEntry,
				AgeGroup:  demoAgeGroups[visitor%len(demoAgeGroups)],
				Gender:    demoGenders[(visitor/len(demoAgeGroups))%len(demoGenders)],
			}
			timeline = append(timeline, stamped{entry, in})

			exit := entry + visit.TimeOfDay((20+(visitor*11)%50)*60)
			if exit <= nowOfDay {
				timeline = append(timeline, stamped{exit, visit.Event{Date: today, TimeOfDay: exit, Action: visit.ActionExit}})
			}
		}
	}

	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].at < timeline[j].at })
	events := make([]visit.Event, len(timeline))
	for i, s := range timeline {
		s.e.SequenceID = int64(i + 1)
		events[i] = s.e
	}
	m.AddVisitEvents(events...)

	// Spread each weekday total over the store's opening hours.
	var totals []visit.HourlyTotal
	for d := 6; d >= 0; d-- {
		day := today.AddDate(0, 0, -d)
		remaining := demoWeek[visit.MondayIndex(day.Weekday())]
		for hour := 8; hour <= 22 && remaining > 0; hour++ {
			n := remaining / (23 - hour)
			if hour == 22 {
				n = remaining
			}
			remaining -= n
			totals = append(totals, visit.HourlyTotal{
				DateHour:      time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc),
				TotalVisitors: n,
			})
		}
	}
	m.AddHourlyTotals(totals...)

	for i, s := range queue.DefaultStatuses() {
		m.AddQueueSnapshots(queue.Snapshot{
			Zone:               s.Zone,
			Timestamp:          now.Add(-time.Duration(i+1) * time.Minute),
			QueueLength:        s.CurrentLength,
			AverageWaitMinutes: s.AverageWaitTime,
			MaxCapacity:        s.MaxCapacity,
		})
	}

	m.SetHeatmap(today, []heatmap.Point{
		{X: 10, Y: 90, Intensity: 0.9}, {X: 15, Y: 90, Intensity: 0.8}, {X: 20, Y: 90, Intensity: 0.7},
		{X: 30, Y: 70, Intensity: 0.6}, {X: 35, Y: 70, Intensity: 0.7}, {X: 40, Y: 70, Intensity: 0.5},
		{X: 60, Y: 50, Intensity: 0.4}, {X: 65, Y: 50, Intensity: 0.5}, {X: 70, Y: 50, Intensity: 0.3},
		{X: 80, Y: 20, Intensity: 0.8}, {X: 85, Y: 20, Intensity: 0.9}, {X: 90, Y: 20, Intensity: 0.7},
		{X: 20, Y: 30, Intensity: 0.4}, {X: 25, Y: 30, Intensity: 0.3}, {X: 30, Y: 30, Intensity: 0.5},
	})
}

// DefaultDemoRefresh is how often DemoSource regenerates the demo day so that
// visitors keep arriving and leaving as the clock advances.
const DefaultDemoRefresh = time.Minute

// DemoSource serves the SeedDemo dataset and regenerates it when the store-local
// date changes or refresh has elapsed since the last seeding. Without that a
// long-running demo would show an empty "today" after midnight.
type DemoSource struct {
	loc     *time.Location
	refresh time.Duration
	now     func() time.Time

	mu       sync.Mutex
	seededAt time.Time
	mem      *MemorySource
}

// NewDemoSource returns a demo source for the store in loc. A non-positive
// refresh means DefaultDemoRefresh; a nil now means time.Now.
func NewDemoSource(loc *time.Location, refresh time.Duration, now func() time.Time) *DemoSource {
	if refresh <= 0 {
		refresh = DefaultDemoRefresh
	}
	if now == nil {
		now = time.Now
	}
	return &DemoSource{loc: orUTC(loc), refresh: refresh, now: now}
}

// current returns the dataset for the present moment, reseeding when stale.
func (d *DemoSource) current() *MemorySource {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	sameDay := d.mem != nil && visit.DayStart(now, d.loc).Equal(visit.DayStart(d.seededAt, d.loc))
	if !sameDay || now.Sub(d.seededAt) >= d.refresh {
		m := NewMemorySource()
		SeedDemo(m, now, d.loc)
		d.mem, d.seededAt = m, now
	}
	return d.mem
}

// VisitEvents implements EventSource.
func (d *DemoSource) VisitEvents(ctx context.Context, start, end time.Time) ([]visit.Event, error) {
	return d.current().VisitEvents(ctx, start, end)
}

// HourlyTotals implements EventSource.
func (d *DemoSource) HourlyTotals(ctx context.Context, since time.Time) ([]visit.HourlyTotal, error) {
	return d.current().HourlyTotals(ctx, since)
}

// QueueSnapshots implements EventSource.
func (d *DemoSource) QueueSnapshots(ctx context.Context, since time.Time, zones []string) ([]queue.Snapshot, error) {
	return d.current().QueueSnapshots(ctx, since, zones)
}

// HeatmapPoints implements EventSource.
func (d *DemoSource) HeatmapPoints(ctx context.Context, date time.Time, limit int) ([]heatmap.Point, error) {
	return d.current().HeatmapPoints(ctx, date, limit)
}

var _ EventSource = (*DemoSource)(nil)
