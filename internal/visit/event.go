// Package visit turns raw entry/exit sensor events into the derived visitor metrics
// shown on the store dashboard: paired visits, hourly occupancy series, scalar stats,
// day-of-week rollups and demographic distributions.
//
// Every function in this package is pure. Callers fetch a batch of events from the
// event source and hand it over; nothing here blocks, mutates shared state or fails.
package visit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Action is the direction of a boundary crossing.
type Action string

const (
	// ActionEntry marks a customer walking into the store ("in").
	ActionEntry Action = "in"
	// ActionExit marks a customer walking out of the store ("out").
	ActionExit Action = "out"
)

// ErrInvalidAction is returned when an action string is neither "in" nor "out".
var ErrInvalidAction = errors.New("action must be 'in' or 'out'")

// ErrInvalidTimeOfDay is returned when a wall-clock string cannot be parsed.
var ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM or HH:MM:SS")

// ParseAction parses the stored action column. Matching is case-insensitive.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "entry":
		return ActionEntry, nil
	case "out", "exit":
		return ActionExit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// TimeOfDay is a store-local wall-clock time expressed as seconds since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from its components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS". Fractional seconds ("HH:MM:SS.ffff"),
// as returned by Postgres time columns, are accepted and truncated.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	if len(parts) == 3 {
		if dot := strings.IndexByte(parts[2], '.'); dot >= 0 {
			parts[2] = parts[2][:dot]
		}
	}

	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
		}
		values[i] = v
	}
	return NewTimeOfDay(values[0], values[1], values[2]), nil
}

// Hour returns the hour component (0-23).
func (t TimeOfDay) Hour() int {
	return int(t) / 3600
}

// Minutes returns the whole minutes since midnight; seconds are dropped.
func (t TimeOfDay) Minutes() int {
	return int(t) / 60
}

// String formats the value as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), (int(t)/60)%60, int(t)%60)
}

// Event is one sensor detection of a customer crossing the store boundary.
// Events are immutable once stored and read-only to this package.
type Event struct {
	// SequenceID is strictly increasing per store and the sole tie-breaker
	// when several events share a timestamp.
	SequenceID int64
	// Date is the store-local calendar date at midnight.
	Date      time.Time
	TimeOfDay TimeOfDay
	Action    Action
	AgeGroup  string // may be empty or "unknown"
	Gender    string // may be empty or "unknown"
}

// IsEntry reports whether the event is an entry.
func (e Event) IsEntry() bool { return e.Action == ActionEntry }

// IsExit reports whether the event is an exit.
func (e Event) IsExit() bool { return e.Action == ActionExit }

// CountActions returns the number of entry and exit events in events.
func CountActions(events []Event) (entries, exits int) {
	for _, e := range events {
		switch e.Action {
		case ActionEntry:
			entries++
		case ActionExit:
			exits++
		}
	}
	return entries, exits
}
