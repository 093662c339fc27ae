package source

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/storepulse/internal/queue"
	"github.com/onnwee/storepulse/internal/visit"
)

// visitRow mirrors a customer_visit row before validation.
type visitRow struct {
	ID     sql.NullInt64
	Date   sql.NullTime
	Time   sql.NullString
	Action sql.NullString
	Age    sql.NullString
	Gender sql.NullString
}

// parseVisitRow validates a raw row. Id, date, time and action are required;
// demographic tags are optional. The date is re-anchored to midnight in loc.
func parseVisitRow(r visitRow, loc *time.Location) (visit.Event, error) {
	if !r.ID.Valid {
		return visit.Event{}, fmt.Errorf("%w: missing id", ErrMalformedRow)
	}
	if !r.Date.Valid {
		return visit.Event{}, fmt.Errorf("%w: visit %d missing date", ErrMalformedRow, r.ID.Int64)
	}
	if !r.Time.Valid {
		return visit.Event{}, fmt.Errorf("%w: visit %d missing time", ErrMalformedRow, r.ID.Int64)
	}
	if !r.Action.Valid {
		return visit.Event{}, fmt.Errorf("%w: visit %d missing action", ErrMalformedRow, r.ID.Int64)
	}

	tod, err := visit.ParseTimeOfDay(r.Time.String)
	if err != nil {
		return visit.Event{}, fmt.Errorf("%w: visit %d: %w", ErrMalformedRow, r.ID.Int64, err)
	}
	action, err := visit.ParseAction(r.Action.String)
	if err != nil {
		return visit.Event{}, fmt.Errorf("%w: visit %d: %w", ErrMalformedRow, r.ID.Int64, err)
	}

	return visit.Event{
		SequenceID: r.ID.Int64,
		Date:       civilDate(r.Date.Time, loc),
		TimeOfDay:  tod,
		Action:     action,
		AgeGroup:   strings.TrimSpace(r.Age.String),
		Gender:     strings.TrimSpace(r.Gender.String),
	}, nil
}

// hourlyRow mirrors a customer_flow row before validation.
type hourlyRow struct {
	DateHour      sql.NullTime
	TotalVisitors sql.NullInt64
}

func parseHourlyRow(r hourlyRow, loc *time.Location) (visit.HourlyTotal, error) {
	if !r.DateHour.Valid {
		return visit.HourlyTotal{}, fmt.Errorf("%w: hourly total missing date_hour", ErrMalformedRow)
	}
	if !r.TotalVisitors.Valid || r.TotalVisitors.Int64 < 0 {
		return visit.HourlyTotal{}, fmt.Errorf("%w: hourly total at %s has invalid total_visitors",
			ErrMalformedRow, r.DateHour.Time.Format(time.RFC3339))
	}
	return visit.HourlyTotal{
		DateHour:      r.DateHour.Time.In(orUTC(loc)),
		TotalVisitors: int(r.TotalVisitors.Int64),
	}, nil
}

// queueRow mirrors a queue_logs row joined with its zone.
type queueRow struct {
	Zone        sql.NullString
	Timestamp   sql.NullTime
	Length      sql.NullInt64
	WaitMinutes sql.NullFloat64
	MaxCapacity sql.NullInt64
}

func parseQueueRow(r queueRow) (queue.Snapshot, error) {
	if !r.Zone.Valid || strings.TrimSpace(r.Zone.String) == "" {
		return queue.Snapshot{}, fmt.Errorf("%w: queue snapshot missing zone", ErrMalformedRow)
	}
	if !r.Timestamp.Valid {
		return queue.Snapshot{}, fmt.Errorf("%w: queue snapshot for %s missing timestamp", ErrMalformedRow, r.Zone.String)
	}
	if !r.Length.Valid || r.Length.Int64 < 0 {
		return queue.Snapshot{}, fmt.Errorf("%w: queue snapshot for %s has invalid length", ErrMalformedRow, r.Zone.String)
	}

	wait := r.WaitMinutes.Float64
	if wait < 0 {
		wait = 0
	}
	return queue.Snapshot{
		Zone:               strings.TrimSpace(r.Zone.String),
		Timestamp:          r.Timestamp.Time,
		QueueLength:        int(r.Length.Int64),
		AverageWaitMinutes: wait,
		MaxCapacity:        int(r.MaxCapacity.Int64),
	}, nil
}

// civilDate keeps the calendar date of t and places it at midnight in loc.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, orUTC(loc))
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
