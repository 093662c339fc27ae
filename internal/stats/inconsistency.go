// Package stats keeps process-wide counts of data inconsistencies found while
// computing dashboard aggregates.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Inconsistencies tracks cumulative counts of data that was filtered out rather than
// failing a computation. All operations are thread-safe using atomic counters.
type Inconsistencies struct {
	strayExits        int64 // exits no entry could claim
	negativeDurations int64 // visits with the exit before the entry
	negativeOccupancy int64 // days where exits outnumbered entries
	rejectedRows      int64 // source rows missing required fields
}

// NewInconsistencies creates a new Inconsistencies instance.
func NewInconsistencies() *Inconsistencies {
	return &Inconsistencies{}
}

// RecordStrayExits adds n unclaimed exit events.
func (s *Inconsistencies) RecordStrayExits(n int) {
	atomic.AddInt64(&s.strayExits, int64(n))
}

// RecordNegativeDurations adds n visits whose exit precedes the entry.
func (s *Inconsistencies) RecordNegativeDurations(n int) {
	atomic.AddInt64(&s.negativeDurations, int64(n))
}

// RecordNegativeOccupancy counts one computation that saw more exits than entries.
func (s *Inconsistencies) RecordNegativeOccupancy() {
	atomic.AddInt64(&s.negativeOccupancy, 1)
}

// RecordRejectedRow counts one malformed source row.
func (s *Inconsistencies) RecordRejectedRow() {
	atomic.AddInt64(&s.rejectedRows, 1)
}

// StrayExits returns the total number of unclaimed exits.
func (s *Inconsistencies) StrayExits() int64 {
	return atomic.LoadInt64(&s.strayExits)
}

// NegativeDurations returns the total number of negative-duration visits.
func (s *Inconsistencies) NegativeDurations() int64 {
	return atomic.LoadInt64(&s.negativeDurations)
}

// NegativeOccupancy returns how many computations saw negative occupancy.
func (s *Inconsistencies) NegativeOccupancy() int64 {
	return atomic.LoadInt64(&s.negativeOccupancy)
}

// RejectedRows returns the total number of malformed source rows.
func (s *Inconsistencies) RejectedRows() int64 {
	return atomic.LoadInt64(&s.rejectedRows)
}

// Total returns the sum of all counters.
func (s *Inconsistencies) Total() int64 {
	return s.StrayExits() + s.NegativeDurations() + s.NegativeOccupancy() + s.RejectedRows()
}

// Reset resets all counters to zero.
func (s *Inconsistencies) Reset() {
	atomic.StoreInt64(&s.strayExits, 0)
	atomic.StoreInt64(&s.negativeDurations, 0)
	atomic.StoreInt64(&s.negativeOccupancy, 0)
	atomic.StoreInt64(&s.rejectedRows, 0)
}

// String returns a human-readable summary of the counters.
func (s *Inconsistencies) String() string {
	return fmt.Sprintf("stray_exits=%d negative_durations=%d negative_occupancy=%d rejected_rows=%d",
		s.StrayExits(), s.NegativeDurations(), s.NegativeOccupancy(), s.RejectedRows())
}

// LogSummary logs the counters at INFO level, or at WARN when any is non-zero.
func (s *Inconsistencies) LogSummary(logger *slog.Logger) {
	level := slog.LevelInfo
	if s.Total() > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "data inconsistency summary",
		"stray_exits", s.StrayExits(),
		"negative_durations", s.NegativeDurations(),
		"negative_occupancy", s.NegativeOccupancy(),
		"rejected_rows", s.RejectedRows(),
	)
}
