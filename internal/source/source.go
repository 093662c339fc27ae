// Package source is the read-only boundary to the store's raw event data: visit
// events, pre-aggregated hourly totals, queue snapshots and heatmap cells.
//
// Rows are validated here and converted into typed values; anything missing a
// required field is logged and skipped so nothing undefined reaches the aggregators.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/storepulse/internal/heatmap"
	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/visit"
)

var (
	// ErrSourceUnavailable wraps every query, network or breaker failure.
	ErrSourceUnavailable = errors.New("event source unavailable")

	// ErrMalformedRow is returned by row validation for rows missing required fields.
	ErrMalformedRow = errors.New("malformed row")
)

// Kind names for the record kinds the source serves.
const (
	KindVisit   = "visit"
	KindHourly  = "hourly_total"
	KindQueue   = "queue_snapshot"
	KindHeatmap = "heatmap"
)

// EventSource is the queryable store the dashboard aggregates read from.
// Implementations must be safe for concurrent use.
type EventSource interface {
	// VisitEvents returns the events dated within [start, end), ordered by sequence id.
	VisitEvents(ctx context.Context, start, end time.Time) ([]visit.Event, error)

	// HourlyTotals returns the pre-aggregated visitor totals at or after since,
	// ordered by hour ascending.
	HourlyTotals(ctx context.Context, since time.Time) ([]visit.HourlyTotal, error)

	// QueueSnapshots returns snapshots taken at or after since, newest first.
	// A non-empty zones slice restricts the result to those zone names.
	QueueSnapshots(ctx context.Context, since time.Time, zones []string) ([]queue.Snapshot, error)

	// HeatmapPoints returns at most limit heatmap cells for the given date.
	HeatmapPoints(ctx context.Context, date time.Time, limit int) ([]heatmap.Point, error)
}

// unavailable wraps err so that errors.Is(err, ErrSourceUnavailable) holds.
func unavailable(kind string, err error) error {
	if err == nil || errors.Is(err, ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s query: %w", ErrSourceUnavailable, kind, err)
}
