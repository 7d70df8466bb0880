// Package timewindow holds the value types shared by conflict detection and
// availability: weekday sets, wall clock times, civil dates and the Window
// shape both recurring slots and single bookings reduce to.
package timewindow

import "time"

// Window is a day-applicability, a half-open clock range [Start, End) and a
// validity range.
type Window struct {
	Days     WeekdaySet
	Start    Clock
	End      Clock
	Validity DateRange
}

// ForDate reduces a single-date occupation to a Window.
func ForDate(d Date, start, end Clock) Window {
	return Window{
		Days:     NewWeekdaySet(d.Weekday()),
		Start:    start,
		End:      end,
		Validity: SingleDay(d),
	}
}

// FromInstants reduces [start, end) to a Window on the date of start in loc.
// An end at midnight of the following day maps to 24:00. The second return
// value is false when the instants do not describe a single day.
func FromInstants(start, end time.Time, loc *time.Location) (Window, bool) {
	if loc == nil {
		loc = time.UTC
	}
	localStart := start.In(loc)
	localEnd := end.In(loc)
	day := DateOf(localStart)

	endClock := ClockOf(localEnd)
	switch endDay := DateOf(localEnd); {
	case endDay == day:
	case endDay == day.AddDays(1) && endClock == 0:
		endClock = MinutesPerDay
	default:
		return Window{}, false
	}
	return ForDate(day, ClockOf(localStart), endClock), true
}

// ActiveOn reports whether the window applies on d.
func (w Window) ActiveOn(d Date) bool {
	return w.Days.Contains(d.Weekday()) && w.Validity.Contains(d)
}

// Duration returns the length of the clock range.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// OverlapsTime reports whether the clock ranges intersect. Touching endpoints
// do not overlap.
func OverlapsTime(a, b Window) bool {
	return a.Start < b.End && b.Start < a.End
}

// OverlapsDays reports whether the weekday sets intersect.
func OverlapsDays(a, b Window) bool {
	return a.Days.Intersects(b.Days)
}

// OverlapsValidity reports whether the validity ranges intersect.
func OverlapsValidity(a, b Window) bool {
	return a.Validity.Intersects(b.Validity)
}

// Overlaps is the collision rule: days, time and validity must all overlap.
func Overlaps(a, b Window) bool {
	return OverlapsDays(a, b) && OverlapsTime(a, b) && OverlapsValidity(a, b)
}
