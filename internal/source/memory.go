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

// MemorySource is an in-memory implementation of EventSource.
// This is useful for testing and development. Thread-safe via RWMutex.
type MemorySource struct {
	mu        sync.RWMutex
	events    []visit.Event
	totals    []visit.HourlyTotal
	snapshots []queue.Snapshot
	heatmap   map[string][]heatmap.Point // date -> points
	err       error
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{heatmap: make(map[string][]heatmap.Point)}
}

// AddVisitEvents appends visit events.
func (m *MemorySource) AddVisitEvents(events ...visit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

// AddHourlyTotals appends pre-aggregated totals.
func (m *MemorySource) AddHourlyTotals(totals ...visit.HourlyTotal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals = append(m.totals, totals...)
}

// AddQueueSnapshots appends queue snapshots.
func (m *MemorySource) AddQueueSnapshots(snapshots ...queue.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshots...)
}

// SetHeatmap replaces the heatmap for a calendar date.
func (m *MemorySource) SetHeatmap(date time.Time, points []heatmap.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heatmap[date.Format(dateLayout)] = append([]heatmap.Point(nil), points...)
}

// SetError makes every query fail with err wrapped as ErrSourceUnavailable.
// Pass nil to restore normal behavior.
func (m *MemorySource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// VisitEvents implements EventSource.
func (m *MemorySource) VisitEvents(ctx context.Context, start, end time.Time) ([]visit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, KindVisit); err != nil {
		return nil, err
	}

	out := []visit.Event{}
	for _, e := range m.events {
		if !e.Date.Before(start) && e.Date.Before(end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SequenceID < out[j].SequenceID })
	return out, nil
}

// HourlyTotals implements EventSource.
func (m *MemorySource) HourlyTotals(ctx context.Context, since time.Time) ([]visit.HourlyTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, KindHourly); err != nil {
		return nil, err
	}

	out := []visit.HourlyTotal{}
	for _, t := range m.totals {
		if !t.DateHour.Before(since) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateHour.Before(out[j].DateHour) })
	return out, nil
}

// QueueSnapshots implements EventSource.
func (m *MemorySource) QueueSnapshots(ctx context.Context, since time.Time, zones []string) ([]queue.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, KindQueue); err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(zones))
	for _, z := range zones {
		allowed[z] = true
	}

	out := []queue.Snapshot{}
	for _, s := range m.snapshots {
		if s.Timestamp.Before(since) {
			continue
		}
		if len(allowed) > 0 && !allowed[s.Zone] {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// HeatmapPoints implements EventSource.
func (m *MemorySource) HeatmapPoints(ctx context.Context, date time.Time, limit int) ([]heatmap.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, KindHeatmap); err != nil {
		return nil, err
	}

	points := m.heatmap[date.Format(dateLayout)]
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	return append([]heatmap.Point{}, points...), nil
}

func (m *MemorySource) check(ctx context.Context, kind string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(kind, err)
	}
	return unavailable(kind, m.err)
}
