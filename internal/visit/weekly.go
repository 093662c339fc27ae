package visit

import "time"

// HourlyTotal is one row of the pre-aggregated visitor table.
type HourlyTotal struct {
	DateHour      time.Time
	TotalVisitors int
}

// DayBucket is the visitor total for one day of the week.
type DayBucket struct {
	Day      string `json:"day"`
	Visitors int    `json:"visitors"`
}

// WeekdayLabels are the bucket labels, Monday first.
var WeekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// MondayIndex maps a weekday onto the Monday-first index 0..6.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// WeeklyRollup sums hourly totals into seven day-of-week buckets, Monday first.
// Totals from several weeks falling on the same weekday are added together.
// The weekday is taken from DateHour in its own location.
func WeeklyRollup(totals []HourlyTotal) []DayBucket {
	buckets := emptyWeek()
	for _, t := range totals {
		buckets[MondayIndex(t.DateHour.Weekday())].Visitors += t.TotalVisitors
	}
	return buckets
}

// WeekFromCounts labels seven Monday-first counts.
func WeekFromCounts(counts [7]int) []DayBucket {
	buckets := emptyWeek()
	for i, c := range counts {
		buckets[i].Visitors = c
	}
	return buckets
}

func emptyWeek() []DayBucket {
	buckets := make([]DayBucket, len(WeekdayLabels))
	for i, label := range WeekdayLabels {
		buckets[i].Day = label
	}
	return buckets
}
