package application

import (
	"time"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/recurrence"
	"github.com/example/hall-scheduler/internal/timewindow"
	"github.com/shopspring/decimal"
)

// Room is a hall catalog entry.
type Room = persistence.Room

// RecurringSlot is a weekly class slot occupying a room.
type RecurringSlot = persistence.RecurringSlot

// Booking is a one-off reservation of a room.
type Booking = persistence.Booking

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name       string
	Capacity   int
	HourlyRate decimal.Decimal
}

// SlotInput captures caller provided recurring slot fields.
type SlotInput struct {
	RoomID     string
	OccupantID string
	Weekdays   timewindow.WeekdaySet
	Start      timewindow.Clock
	End        timewindow.Clock
	ValidFrom  timewindow.Date
	ValidUntil *timewindow.Date
}

// BookingInput captures caller provided booking fields.
type BookingInput struct {
	RoomID     string
	OccupantID *string
	StartsAt   time.Time
	EndsAt     time.Time
}

// BookingQuery narrows a room booking listing. Nil bounds are open.
type BookingQuery struct {
	From   *time.Time
	To     *time.Time
	Status *lifecycle.Status
}

// CandidateInput is a window submitted for a conflict check. It is
// booking-shaped when StartsAt or EndsAt is set and slot-shaped otherwise.
type CandidateInput struct {
	StartsAt *time.Time
	EndsAt   *time.Time

	Weekdays   timewindow.WeekdaySet
	Start      timewindow.Clock
	End        timewindow.Clock
	ValidFrom  timewindow.Date
	ValidUntil *timewindow.Date
}

// IsBooking reports whether the candidate describes a single booking.
func (c CandidateInput) IsBooking() bool {
	return c.StartsAt != nil || c.EndsAt != nil
}

// Occurrence is a dated instance of a slot or an approved booking.
type Occurrence = recurrence.Occurrence
