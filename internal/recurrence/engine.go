package recurrence

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

var jst = time.FixedZone("JST", 9*60*60)

// MaxRangeDays bounds a single expansion request.
const MaxRangeDays = 366

// Occurrence is one dated instance of an occupant's window.
type Occurrence struct {
	Kind       scheduler.Kind
	SourceID   string
	RoomID     string
	OccupantID string
	Date       timewindow.Date
	Start      time.Time
	End        time.Time
}

// Engine expands occupant windows into concrete occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that places occurrences in the provided location.
// If loc is nil, Asia/Tokyo (JST) is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = jst
	}
	return &Engine{location: loc}
}

// Location returns the zone occurrences are expressed in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return jst
	}
	return e.location
}

// ErrInvalidWindow indicates the expansion range is reversed or too long.
var ErrInvalidWindow = errors.New("recurrence: expansion range must be ordered and at most 366 days")

// ErrInvalidDuration indicates the occupant's clock range is empty.
var ErrInvalidDuration = errors.New("recurrence: occupant duration must be positive")

// Expand produces the occurrences of occupant between from and to inclusive.
//
// The engine enforces the following semantics:
//   - Occurrences are produced only on dates where the window is active
//     (weekday selected and inside the validity range).
//   - An end clock of 24:00 maps to midnight of the following date.
//   - The range is clipped to the validity range before iterating.
func (e *Engine) Expand(occupant scheduler.Occupant, from, to timewindow.Date) ([]Occurrence, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	w := occupant.Window
	if w.Start >= w.End {
		return nil, ErrInvalidDuration
	}

	lower := from
	if w.Validity.From.After(lower) {
		lower = w.Validity.From
	}
	upper := to
	if w.Validity.Until != nil && w.Validity.Until.Before(upper) {
		upper = *w.Validity.Until
	}

	loc := e.Location()
	occurrences := make([]Occurrence, 0)
	for day := lower; !day.After(upper); day = day.AddDays(1) {
		if !w.Days.Contains(day.Weekday()) {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			Kind:       occupant.Kind,
			SourceID:   occupant.ID,
			RoomID:     occupant.RoomID,
			OccupantID: occupant.OccupantID,
			Date:       day,
			Start:      w.Start.On(day, loc),
			End:        w.End.On(day, loc),
		})
	}
	return occurrences, nil
}

// ExpandAll expands every occupant and returns the occurrences ordered by
// start, kind and source id.
func (e *Engine) ExpandAll(occupants []scheduler.Occupant, from, to timewindow.Date) ([]Occurrence, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	var all []Occurrence
	for _, occupant := range occupants {
		occurrences, err := e.Expand(occupant, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, occurrences...)
	}
	slices.SortFunc(all, func(a, b Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.SourceID, b.SourceID)
	})
	return all, nil
}

func checkRange(from, to timewindow.Date) error {
	if from.IsZero() || to.IsZero() || to.Before(from) || to.DaysSince(from) >= MaxRangeDays {
		return ErrInvalidWindow
	}
	return nil
}
