package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/hall-scheduler/internal/application"
	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/timewindow"
)

var (
	roomCounter    uint64
	slotCounter    uint64
	bookingCounter uint64
)

// Zone is the fixed +09:00 zone fixtures are expressed in.
var Zone = time.FixedZone("JST", 9*60*60)

// Monday 2025-01-06 09:00 JST.
var referenceTime = time.Date(2025, time.January, 6, 9, 0, 0, 0, Zone)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the local date of ReferenceTime.
func ReferenceDate() timewindow.Date {
	return timewindow.DateOf(referenceTime)
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic hall record.
type RoomFixture struct {
	ID         string
	Name       string
	Capacity   int
	HourlyRate decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RoomFixture{
		ID:         fmt.Sprintf("room-%03d", idx),
		Name:       fmt.Sprintf("Hall %03d", idx),
		Capacity:   int(20 + idx%5*10),
		HourlyRate: decimal.NewFromInt(1200),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithRoomHourlyRate parses rate as a decimal and panics on malformed input.
func WithRoomHourlyRate(rate string) RoomOption {
	return func(f *RoomFixture) {
		f.HourlyRate = decimal.RequireFromString(rate)
	}
}

// WithRoomTimestamps sets both created and updated timestamps.
func WithRoomTimestamps(created, updated time.Time) RoomOption {
	return func(f *RoomFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:         f.ID,
		Name:       f.Name,
		Capacity:   f.Capacity,
		HourlyRate: f.HourlyRate,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:       f.Name,
		Capacity:   f.Capacity,
		HourlyRate: f.HourlyRate,
	}
}

// ----------------------------- Slot fixtures -----------------------------

// SlotFixture represents a deterministic recurring slot. The default is
// Mon/Wed/Fri 09:00-11:00 from ReferenceDate with no end.
type SlotFixture struct {
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

// SlotOption configures the generated slot fixture.
type SlotOption func(*SlotFixture)

// NewSlotFixture returns a deterministic slot fixture with optional overrides.
func NewSlotFixture(opts ...SlotOption) SlotFixture {
	idx := atomic.AddUint64(&slotCounter, 1)
	fixture := SlotFixture{
		ID:         fmt.Sprintf("slot-%03d", idx),
		RoomID:     "room-001",
		OccupantID: fmt.Sprintf("course-%03d", idx),
		Weekdays:   timewindow.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
		Start:      timewindow.NewClock(9, 0),
		End:        timewindow.NewClock(11, 0),
		ValidFrom:  ReferenceDate(),
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSlotID overrides the slot ID.
func WithSlotID(id string) SlotOption {
	return func(f *SlotFixture) {
		f.ID = id
	}
}

// WithSlotRoom sets the room the slot occupies.
func WithSlotRoom(roomID string) SlotOption {
	return func(f *SlotFixture) {
		f.RoomID = roomID
	}
}

// WithSlotOccupant overrides the occupant reference.
func WithSlotOccupant(occupantID string) SlotOption {
	return func(f *SlotFixture) {
		f.OccupantID = occupantID
	}
}

// WithSlotWeekdays replaces the weekday set.
func WithSlotWeekdays(days ...time.Weekday) SlotOption {
	return func(f *SlotFixture) {
		f.Weekdays = timewindow.NewWeekdaySet(days...)
	}
}

// WithSlotTimes sets the local start and end clocks.
func WithSlotTimes(start, end timewindow.Clock) SlotOption {
	return func(f *SlotFixture) {
		f.Start = start
		f.End = end
	}
}

// WithSlotValidity sets the validity range. A nil until leaves it open.
func WithSlotValidity(from timewindow.Date, until *timewindow.Date) SlotOption {
	return func(f *SlotFixture) {
		f.ValidFrom = from
		f.ValidUntil = copyDatePtr(until)
	}
}

// Persistence returns the fixture as a persistence.RecurringSlot value.
func (f SlotFixture) Persistence() persistence.RecurringSlot {
	return persistence.RecurringSlot{
		ID:         f.ID,
		RoomID:     f.RoomID,
		OccupantID: f.OccupantID,
		Weekdays:   f.Weekdays,
		Start:      f.Start,
		End:        f.End,
		ValidFrom:  f.ValidFrom,
		ValidUntil: copyDatePtr(f.ValidUntil),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Input returns the fixture as an application.SlotInput.
func (f SlotFixture) Input() application.SlotInput {
	return application.SlotInput{
		RoomID:     f.RoomID,
		OccupantID: f.OccupantID,
		Weekdays:   f.Weekdays,
		Start:      f.Start,
		End:        f.End,
		ValidFrom:  f.ValidFrom,
		ValidUntil: copyDatePtr(f.ValidUntil),
	}
}

// --------------------------- Booking fixtures ----------------------------

// BookingFixture represents a deterministic one-off booking. The default is a
// pending 13:00-14:00 booking on ReferenceDate.
type BookingFixture struct {
	ID         string
	RoomID     string
	OccupantID *string
	StartsAt   time.Time
	EndsAt     time.Time
	Status     lifecycle.Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a deterministic booking fixture with optional overrides.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	start := time.Date(2025, time.January, 6, 13, 0, 0, 0, Zone)
	fixture := BookingFixture{
		ID:        fmt.Sprintf("booking-%03d", idx),
		RoomID:    "room-001",
		StartsAt:  start,
		EndsAt:    start.Add(time.Hour),
		Status:    lifecycle.StatusPending,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) {
		f.ID = id
	}
}

// WithBookingRoom sets the booked room.
func WithBookingRoom(roomID string) BookingOption {
	return func(f *BookingFixture) {
		f.RoomID = roomID
	}
}

// WithBookingOccupant sets the optional occupant reference.
func WithBookingOccupant(occupantID string) BookingOption {
	return func(f *BookingFixture) {
		id := occupantID
		f.OccupantID = &id
	}
}

// WithBookingTimes sets the start and end instants.
func WithBookingTimes(start, end time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.StartsAt = start
		f.EndsAt = end
	}
}

// WithBookingStatus sets the lifecycle status.
func WithBookingStatus(status lifecycle.Status) BookingOption {
	return func(f *BookingFixture) {
		f.Status = status
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:         f.ID,
		RoomID:     f.RoomID,
		OccupantID: copyStringPtr(f.OccupantID),
		StartsAt:   f.StartsAt,
		EndsAt:     f.EndsAt,
		Status:     f.Status,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Input returns the fixture as an application.BookingInput.
func (f BookingFixture) Input() application.BookingInput {
	return application.BookingInput{
		RoomID:     f.RoomID,
		OccupantID: copyStringPtr(f.OccupantID),
		StartsAt:   f.StartsAt,
		EndsAt:     f.EndsAt,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyDatePtr(src *timewindow.Date) *timewindow.Date {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
