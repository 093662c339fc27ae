package visit

import (
	"testing"
	"time"
)

func TestWeeklyRollup(t *testing.T) {
	// 2025-03-10 is a Monday.
	at := func(day, hour int) time.Time { return time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC) }

	totals := []HourlyTotal{
		{DateHour: at(10, 9), TotalVisitors: 5},
		{DateHour: at(10, 10), TotalVisitors: 7},
		{DateHour: at(12, 14), TotalVisitors: 3},
		{DateHour: at(16, 18), TotalVisitors: 11},
		{DateHour: at(17, 9), TotalVisitors: 2}, // following Monday
	}

	buckets := WeeklyRollup(totals)

	want := []DayBucket{
		{"Mon", 14}, {"Tue", 0}, {"Wed", 3}, {"Thu", 0}, {"Fri", 0}, {"Sat", 0}, {"Sun", 11},
	}
	if len(buckets) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(buckets))
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Errorf("bucket %d = %+v, want %+v", i, buckets[i], want[i])
		}
	}
}

func TestWeeklyRollup_Empty(t *testing.T) {
	buckets := WeeklyRollup(nil)
	if len(buckets) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(buckets))
	}
	for i, b := range buckets {
		if b.Visitors != 0 || b.Day != WeekdayLabels[i] {
			t.Errorf("bucket %d = %+v", i, b)
		}
	}
}

func TestMondayIndex(t *testing.T) {
	if MondayIndex(time.Monday) != 0 || MondayIndex(time.Sunday) != 6 || MondayIndex(time.Saturday) != 5 {
		t.Error("MondayIndex does not map Monday=0 .. Sunday=6")
	}
}
