// Package availability computes the free windows of a room on a single date
// from the intervals its occupants hold.
package availability

import (
	"cmp"
	"slices"

	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// Interval is a half-open clock range [Start, End) within one day.
type Interval struct {
	Start timewindow.Clock
	End   timewindow.Clock
}

// Empty reports whether the interval covers no time.
func (i Interval) Empty() bool {
	return i.Start >= i.End
}

// Minutes returns the interval length in minutes.
func (i Interval) Minutes() int {
	if i.Empty() {
		return 0
	}
	return int(i.End - i.Start)
}

// FreePeriod is a maximal unoccupied run within working hours together with
// its full-length sub-slots.
type FreePeriod struct {
	Start    timewindow.Clock
	End      timewindow.Clock
	SubSlots []Interval
}

// Interval returns the period bounds.
func (p FreePeriod) Interval() Interval {
	return Interval{Start: p.Start, End: p.End}
}

// FromOccupants converts the windows of occupants into day intervals.
func FromOccupants(occupants []scheduler.Occupant) []Interval {
	intervals := make([]Interval, 0, len(occupants))
	for _, occupant := range occupants {
		intervals = append(intervals, Interval{Start: occupant.Window.Start, End: occupant.Window.End})
	}
	return intervals
}

// Merge sorts intervals and joins any that overlap or touch into maximal
// runs. Empty intervals are discarded. The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	sorted := make([]Interval, 0, len(intervals))
	for _, interval := range intervals {
		if !interval.Empty() {
			sorted = append(sorted, interval)
		}
	}
	slices.SortFunc(sorted, func(a, b Interval) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.End, b.End)
	})

	var merged []Interval
	for _, next := range sorted {
		if n := len(merged); n > 0 && next.Start <= merged[n-1].End {
			merged[n-1].End = max(merged[n-1].End, next.End)
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// Split divides interval into consecutive sub-slots of minutes length starting
// at its start. A trailing remainder shorter than minutes is dropped.
func Split(interval Interval, minutes int) []Interval {
	if minutes <= 0 || interval.Empty() {
		return nil
	}
	step := timewindow.Clock(minutes)
	var slots []Interval
	for start := interval.Start; start+step <= interval.End; start += step {
		slots = append(slots, Interval{Start: start, End: start + step})
	}
	return slots
}

// FreePeriods returns the gaps left in hours by occupied, in order. Occupied
// intervals are clipped to hours before merging. When subSlotMinutes is
// positive every period carries its full-length sub-slots.
func FreePeriods(hours Interval, occupied []Interval, subSlotMinutes int) []FreePeriod {
	if hours.Empty() {
		return nil
	}

	clipped := make([]Interval, 0, len(occupied))
	for _, interval := range occupied {
		interval.Start = max(interval.Start, hours.Start)
		interval.End = min(interval.End, hours.End)
		if !interval.Empty() {
			clipped = append(clipped, interval)
		}
	}

	var periods []FreePeriod
	cursor := hours.Start
	emit := func(end timewindow.Clock) {
		if cursor >= end {
			return
		}
		gap := Interval{Start: cursor, End: end}
		periods = append(periods, FreePeriod{Start: gap.Start, End: gap.End, SubSlots: Split(gap, subSlotMinutes)})
	}
	for _, run := range Merge(clipped) {
		emit(run.Start)
		cursor = max(cursor, run.End)
	}
	emit(hours.End)
	return periods
}
