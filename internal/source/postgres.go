package source

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/storepulse/internal/heatmap"
	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/stats"
	"github.com/onnwee/storepulse/internal/tracing"
	"github.com/onnwee/storepulse/internal/visit"
)

// dateLayout is how calendar dates are bound as query parameters.
const dateLayout = "2006-01-02"

const (
	visitEventsQuery = `SELECT id, date, "time"::text, action, age, gender
		FROM customer_visit
		WHERE date >= $1::date AND date < $2::date
		ORDER BY id ASC`

	hourlyTotalsQuery = `SELECT date_hour, total_visitors
		FROM customer_flow
		WHERE store_id = $1 AND date_hour >= $2
		ORDER BY date_hour ASC`

	queueSnapshotsQuery = `SELECT z.name, q.timestamp, q.queue_length, q.estimated_wait_time_minutes, z.max_capacity
		FROM queue_logs q
		JOIN zones z ON z.id = q.zone_id
		WHERE q.store_id = $1 AND q.timestamp >= $2
		  AND (cardinality($3::text[]) = 0 OR z.name = ANY($3::text[]))
		ORDER BY q.timestamp DESC`

	heatmapPointsQuery = `SELECT x_coordinate, y_coordinate, intensity
		FROM heatmap_data
		WHERE store_id = $1 AND date = $2::date
		LIMIT $3`
)

// PostgresSource implements EventSource on the dashboard's Postgres schema.
type PostgresSource struct {
	db       *sql.DB
	storeID  string
	loc      *time.Location
	logger   *slog.Logger
	metrics  *Metrics
	rejected *stats.Inconsistencies
}

// PostgresOption configures a PostgresSource.
type PostgresOption func(*PostgresSource)

// WithMetrics records query and row metrics.
func WithMetrics(m *Metrics) PostgresOption {
	return func(s *PostgresSource) { s.metrics = m }
}

// WithInconsistencies counts rejected rows in the shared inconsistency tracker.
func WithInconsistencies(i *stats.Inconsistencies) PostgresOption {
	return func(s *PostgresSource) { s.rejected = i }
}

// NewPostgresSource creates a source reading the given store's data. Dates are
// interpreted in loc (store-local time); a nil loc means UTC.
func NewPostgresSource(db *sql.DB, storeID string, loc *time.Location, logger *slog.Logger, opts ...PostgresOption) *PostgresSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PostgresSource{
		db:      db,
		storeID: storeID,
		loc:     orUTC(loc),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VisitEvents implements EventSource.
func (s *PostgresSource) VisitEvents(ctx context.Context, start, end time.Time) (events []visit.Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "customer_visit", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()
	defer s.observe(KindVisit, time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, visitEventsQuery,
		start.In(s.loc).Format(dateLayout), end.In(s.loc).Format(dateLayout))
	if err != nil {
		return nil, unavailable(KindVisit, err)
	}
	defer rows.Close()

	events = []visit.Event{}
	for rows.Next() {
		var r visitRow
		if err := rows.Scan(&r.ID, &r.Date, &r.Time, &r.Action, &r.Age, &r.Gender); err != nil {
			return nil, unavailable(KindVisit, err)
		}
		e, perr := parseVisitRow(r, s.loc)
		if perr != nil {
			s.reject(ctx, KindVisit, perr)
			continue
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(KindVisit, err)
	}
	return events, nil
}

// HourlyTotals implements EventSource.
func (s *PostgresSource) HourlyTotals(ctx context.Context, since time.Time) (totals []visit.HourlyTotal, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "customer_flow", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()
	defer s.observe(KindHourly, time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, hourlyTotalsQuery, s.storeID, since)
	if err != nil {
		return nil, unavailable(KindHourly, err)
	}
	defer rows.Close()

	totals = []visit.HourlyTotal{}
	for rows.Next() {
		var r hourlyRow
		if err := rows.Scan(&r.DateHour, &r.TotalVisitors); err != nil {
			return nil, unavailable(KindHourly, err)
		}
		t, perr := parseHourlyRow(r, s.loc)
		if perr != nil {
			s.reject(ctx, KindHourly, perr)
			continue
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(KindHourly, err)
	}
	return totals, nil
}

// QueueSnapshots implements EventSource.
func (s *PostgresSource) QueueSnapshots(ctx context.Context, since time.Time, zones []string) (snapshots []queue.Snapshot, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "queue_logs", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()
	defer s.observe(KindQueue, time.Now(), &err)

	if zones == nil {
		zones = []string{}
	}
	rows, err := s.db.QueryContext(ctx, queueSnapshotsQuery, s.storeID, since, pq.Array(zones))
	if err != nil {
		return nil, unavailable(KindQueue, err)
	}
	defer rows.Close()

	snapshots = []queue.Snapshot{}
	for rows.Next() {
		var r queueRow
		if err := rows.Scan(&r.Zone, &r.Timestamp, &r.Length, &r.WaitMinutes, &r.MaxCapacity); err != nil {
			return nil, unavailable(KindQueue, err)
		}
		snap, perr := parseQueueRow(r)
		if perr != nil {
			s.reject(ctx, KindQueue, perr)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(KindQueue, err)
	}
	return snapshots, nil
}

// HeatmapPoints implements EventSource.
func (s *PostgresSource) HeatmapPoints(ctx context.Context, date time.Time, limit int) (points []heatmap.Point, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "heatmap_data", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()
	defer s.observe(KindHeatmap, time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, heatmapPointsQuery, s.storeID, date.In(s.loc).Format(dateLayout), limit)
	if err != nil {
		return nil, unavailable(KindHeatmap, err)
	}
	defer rows.Close()

	points = []heatmap.Point{}
	for rows.Next() {
		var x, y, intensity sql.NullFloat64
		if err := rows.Scan(&x, &y, &intensity); err != nil {
			return nil, unavailable(KindHeatmap, err)
		}
		if !x.Valid || !y.Valid || !intensity.Valid {
			s.reject(ctx, KindHeatmap, ErrMalformedRow)
			continue
		}
		points = append(points, heatmap.Point{X: x.Float64, Y: y.Float64, Intensity: intensity.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(KindHeatmap, err)
	}
	return points, nil
}

// HealthCheck pings the database.
func (s *PostgresSource) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresSource) reject(ctx context.Context, kind string, err error) {
	s.logger.WarnContext(ctx, "skipping malformed source row", "kind", kind, "error", err)
	s.metrics.IncRowsRejected(kind)
	if s.rejected != nil {
		s.rejected.RecordRejectedRow()
	}
}

func (s *PostgresSource) observe(kind string, start time.Time, err *error) {
	s.metrics.ObserveQuery(kind, time.Since(start).Seconds(), *err)
}
