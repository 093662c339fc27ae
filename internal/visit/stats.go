package visit

import "math"

// DashboardStats are the scalar figures at the top of the dashboard.
type DashboardStats struct {
	TodayVisitors   int     `json:"todayVisitors"`
	CurrentVisitors int     `json:"currentVisitors"`
	AverageStayTime float64 `json:"averageStayTime"` // minutes, one decimal
	ConversionRate  float64 `json:"conversionRate"`  // no data source backs this yet; always 0
}

// ComputeStats derives the dashboard figures from one day's events.
// CurrentVisitors is entries minus exits and is not clamped at zero.
func ComputeStats(events []Event) DashboardStats {
	return StatsFor(events, Pair(events))
}

// StatsFor is ComputeStats for callers that already hold the pairing of events.
func StatsFor(events []Event, p Pairing) DashboardStats {
	entries, exits := CountActions(events)
	return DashboardStats{
		TodayVisitors:   entries,
		CurrentVisitors: entries - exits,
		AverageStayTime: AverageStayMinutes(p.Visits),
	}
}

// AverageStayMinutes is the mean duration over visits with a non-negative duration,
// rounded to one decimal place. It returns 0 when no such visit exists.
func AverageStayMinutes(visits []Visit) float64 {
	total, n := 0, 0
	for _, v := range visits {
		d := v.DurationMinutes()
		if d < 0 {
			continue
		}
		total += d
		n++
	}
	if n == 0 {
		return 0
	}
	return roundTo(float64(total)/float64(n), 1)
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
