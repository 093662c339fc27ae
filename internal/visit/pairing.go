package visit

import (
	"sort"
	"time"
)

const minutesPerDay = 24 * 60

// Visit is one entry matched to one exit. The exit always has a strictly greater
// sequence id than the entry.
type Visit struct {
	Entry Event
	Exit  Event
}

// DurationMinutes is the exit time minus the entry time in whole minutes.
// Events on different dates add 1440 minutes per day between them.
// A negative value means malformed data; such visits still count as a pair.
func (v Visit) DurationMinutes() int {
	days := 0
	if !v.Entry.Date.IsZero() && !v.Exit.Date.IsZero() {
		days = daysBetween(v.Entry.Date, v.Exit.Date)
	}
	return days*minutesPerDay + v.Exit.TimeOfDay.Minutes() - v.Entry.TimeOfDay.Minutes()
}

// daysBetween counts calendar days from a to b, ignoring clock time and DST shifts.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours()) / 24
}

// Pairing is the partition of a batch of events produced by Pair.
type Pairing struct {
	Visits []Visit
	// OpenEntries are entries without a later exit: customers still inside.
	OpenEntries []Event
	// StrayExits are exits no entry claimed. They are sensor noise.
	StrayExits []Event
}

// NegativeDurations returns how many visits have an exit before their entry.
func (p Pairing) NegativeDurations() int {
	n := 0
	for _, v := range p.Visits {
		if v.DurationMinutes() < 0 {
			n++
		}
	}
	return n
}

// Pair matches entries to exits first-in-first-out by sequence id.
//
// Entries are visited in ascending sequence order. Each one claims the unclaimed exit
// with the lowest sequence id that is still greater than its own; when none exists the
// entry stays open. Exits nobody claims are returned as strays.
//
// Because entries ascend, the lower bound for eligible exits never decreases and
// every exit skipped below that bound can never become eligible again, so a single
// cursor over the sorted exits reproduces the claim-and-remove scan exactly.
// The input slice is not modified.
func Pair(events []Event) Pairing {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceID < sorted[j].SequenceID
	})

	var entries, exits []Event
	for _, e := range sorted {
		switch e.Action {
		case ActionEntry:
			entries = append(entries, e)
		case ActionExit:
			exits = append(exits, e)
		}
	}

	result := Pairing{
		Visits:      make([]Visit, 0, min(len(entries), len(exits))),
		OpenEntries: []Event{},
		StrayExits:  []Event{},
	}

	claimed := make([]bool, len(exits))
	cursor := 0
	for _, entry := range entries {
		for cursor < len(exits) && exits[cursor].SequenceID <= entry.SequenceID {
			cursor++
		}
		if cursor == len(exits) {
			result.OpenEntries = append(result.OpenEntries, entry)
			continue
		}
		claimed[cursor] = true
		result.Visits = append(result.Visits, Visit{Entry: entry, Exit: exits[cursor]})
		cursor++
	}

	for i, x := range exits {
		if !claimed[i] {
			result.StrayExits = append(result.StrayExits, x)
		}
	}
	return result
}
