package persistence

import (
	"time"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/timewindow"
	"github.com/shopspring/decimal"
)

// Room represents a hall catalog entry.
type Room struct {
	ID         string
	Name       string
	Capacity   int
	HourlyRate decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecurringSlot represents a weekly class slot stored in persistence.
type RecurringSlot struct {
	ID         string
	RoomID     string
	OccupantID string
	Weekdays   timewindow.WeekdaySet
	Start      timewindow.Clock
	End        timewindow.Clock
	ValidFrom  timewindow.Date
	ValidUntil *timewindow.Date
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Window reduces the slot to its comparison shape.
func (s RecurringSlot) Window() timewindow.Window {
	return timewindow.Window{
		Days:     s.Weekdays,
		Start:    s.Start,
		End:      s.End,
		Validity: timewindow.DateRange{From: s.ValidFrom, Until: s.ValidUntil},
	}
}

// ActiveOn reports whether the slot occupies its room on d.
func (s RecurringSlot) ActiveOn(d timewindow.Date) bool {
	return s.Window().ActiveOn(d)
}

// Booking represents a one-off room booking stored in persistence.
type Booking struct {
	ID         string
	RoomID     string
	OccupantID *string
	StartsAt   time.Time
	EndsAt     time.Time
	Status     lifecycle.Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
