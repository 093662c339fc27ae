// Package queue reduces periodic checkout-queue measurements to the latest reading
// per zone for the dashboard queue panel.
package queue

import (
	"sort"
	"time"
)

// DefaultMaxCapacity is used when a zone has no configured capacity.
const DefaultMaxCapacity = 10

// DefaultLookback is how far back snapshots are considered current.
const DefaultLookback = 60 * time.Minute

// Snapshot is one measurement of a checkout zone's queue.
type Snapshot struct {
	Zone               string
	Timestamp          time.Time
	QueueLength        int
	AverageWaitMinutes float64
	MaxCapacity        int // from the zone; 0 when unknown
}

// Status is the queue panel row for one zone.
type Status struct {
	Zone            string  `json:"zone"`
	CurrentLength   int     `json:"currentLength"`
	AverageWaitTime float64 `json:"averageWaitTime"`
	MaxCapacity     int     `json:"maxCapacity"`
}

// Latest keeps the most recent snapshot per zone. Snapshots are first ordered by
// timestamp descending (stable, so equal timestamps keep their input order); the
// output lists zones in the order their newest snapshot appears. Applying Latest to
// its own output returns the same result. The input slice is not modified.
func Latest(snapshots []Snapshot) []Snapshot {
	sorted := make([]Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	seen := make(map[string]struct{}, len(sorted))
	latest := make([]Snapshot, 0, len(sorted))
	for _, s := range sorted {
		if s.Zone == "" {
			continue
		}
		if _, ok := seen[s.Zone]; ok {
			continue
		}
		seen[s.Zone] = struct{}{}
		latest = append(latest, s)
	}
	return latest
}

// Statuses de-duplicates snapshots into panel rows. When no zone has a snapshot the
// default checkout zones are returned so the panel is never empty.
func Statuses(snapshots []Snapshot) []Status {
	latest := Latest(snapshots)
	if len(latest) == 0 {
		return DefaultStatuses()
	}

	statuses := make([]Status, len(latest))
	for i, s := range latest {
		statuses[i] = s.Status()
	}
	return statuses
}

// Status converts a snapshot into its panel row.
func (s Snapshot) Status() Status {
	capacity := s.MaxCapacity
	if capacity <= 0 {
		capacity = DefaultMaxCapacity
	}
	return Status{
		Zone:            s.Zone,
		CurrentLength:   s.QueueLength,
		AverageWaitTime: s.AverageWaitMinutes,
		MaxCapacity:     capacity,
	}
}

// DefaultStatuses is the placeholder panel shown when no snapshot is available.
func DefaultStatuses() []Status {
	return []Status{
		{Zone: "Checkout 1", CurrentLength: 3, AverageWaitTime: 2.5, MaxCapacity: DefaultMaxCapacity},
		{Zone: "Checkout 2", CurrentLength: 5, AverageWaitTime: 4.2, MaxCapacity: DefaultMaxCapacity},
		{Zone: "Checkout 3", CurrentLength: 2, AverageWaitTime: 1.8, MaxCapacity: DefaultMaxCapacity},
	}
}
