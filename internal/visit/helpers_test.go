package visit

import (
	"testing"
	"time"
)

var testDay = time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)

// ev builds an event on testDay from a sequence id, action and "HH:MM" time.
func ev(t *testing.T, id int64, action Action, clock string) Event {
	t.Helper()
	tod, err := ParseTimeOfDay(clock)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) error = %v", clock, err)
	}
	return Event{SequenceID: id, Date: testDay, TimeOfDay: tod, Action: action}
}
