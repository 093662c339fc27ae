package visit

import (
	"errors"
	"fmt"
	"time"
)

// HoursPerDay is the fixed number of buckets in an hourly series.
const HoursPerDay = 24

// HourlySeries holds one integer per hour of the day, index 0 through 23.
type HourlySeries [HoursPerDay]int

// FlowPoint is one entry of an hourly series as rendered by the dashboard.
type FlowPoint struct {
	Timestamp string `json:"timestamp"` // "HH:00"
	Count     int    `json:"count"`
	Hour      int    `json:"hour"`
}

// Points converts the series into exactly 24 points ordered by hour.
func (s HourlySeries) Points() []FlowPoint {
	points := make([]FlowPoint, HoursPerDay)
	for h := 0; h < HoursPerDay; h++ {
		points[h] = FlowPoint{
			Timestamp: fmt.Sprintf("%02d:00", h),
			Count:     s[h],
			Hour:      h,
		}
	}
	return points
}

// FlowByHour counts, for each hour, the visitors present at some point during it.
// Each visit increments every bucket from its entry hour to its exit hour inclusive.
// Visits whose exit hour precedes the entry hour add nothing.
func FlowByHour(visits []Visit) HourlySeries {
	var series HourlySeries
	for _, v := range visits {
		h0 := v.Entry.TimeOfDay.Hour()
		h1 := v.Exit.TimeOfDay.Hour()
		for h := h0; h <= h1 && h < HoursPerDay; h++ {
			series[h]++
		}
	}
	return series
}

// RunningCountByHour reports net occupancy at the end of each hour: bucket h holds
// entries minus exits over every event whose hour is at most h. It needs no pairing,
// so bucket 23 always equals the day's entries minus exits. Values may go negative
// when exits were recorded without matching entries.
func RunningCountByHour(events []Event) HourlySeries {
	var net HourlySeries
	for _, e := range events {
		h := e.TimeOfDay.Hour()
		if h < 0 || h >= HoursPerDay {
			continue
		}
		switch e.Action {
		case ActionEntry:
			net[h]++
		case ActionExit:
			net[h]--
		}
	}

	var series HourlySeries
	running := 0
	for h := 0; h < HoursPerDay; h++ {
		running += net[h]
		series[h] = running
	}
	return series
}

// TimeRange is a semantic reporting window selected by the dashboard.
type TimeRange string

const (
	RangeToday     TimeRange = "today"
	RangeYesterday TimeRange = "yesterday"
	RangeLast7Days TimeRange = "7days"
)

// ErrInvalidTimeRange is returned for an unknown range name.
var ErrInvalidTimeRange = errors.New("range must be one of today, yesterday, 7days")

// ParseTimeRange parses a range name. The empty string means today.
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(s) {
	case "", RangeToday:
		return RangeToday, nil
	case RangeYesterday:
		return RangeYesterday, nil
	case RangeLast7Days:
		return RangeLast7Days, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, s)
}

// Bounds maps the range onto a half-open [start, end) interval of store-local dates.
// The last-7-days window covers today and the six days before it.
func (r TimeRange) Bounds(now time.Time, loc *time.Location) (start, end time.Time) {
	today := DayStart(now, loc)
	switch r {
	case RangeYesterday:
		return today.AddDate(0, 0, -1), today
	case RangeLast7Days:
		return today.AddDate(0, 0, -6), today.AddDate(0, 0, 1)
	default:
		return today, today.AddDate(0, 0, 1)
	}
}

// DayStart returns midnight of t's calendar date in loc. A nil loc means UTC.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
