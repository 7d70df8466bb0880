package scheduler

import (
	"cmp"
	"slices"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// Kind distinguishes the two sources of room occupation.
type Kind string

const (
	// KindSlot marks a recurring class slot.
	KindSlot Kind = "slot"
	// KindBooking marks a one-off booking.
	KindBooking Kind = "booking"
)

// Occupant is anything that can hold a room for a window.
// Status is only meaningful for bookings.
type Occupant struct {
	Kind       Kind
	ID         string
	RoomID     string
	OccupantID string
	Window     timewindow.Window
	Status     lifecycle.Status
}

// Ref returns the identifying part of the occupant.
func (o Occupant) Ref() OccupantRef {
	return OccupantRef{Kind: o.Kind, ID: o.ID, OccupantID: o.OccupantID}
}

// OccupantRef identifies a colliding slot or booking.
type OccupantRef struct {
	Kind       Kind
	ID         string
	OccupantID string
}

// Conflict details an existing occupant the candidate collides with, along
// with that occupant's window so callers can present it to users.
type Conflict struct {
	OccupantRef
	Window timewindow.Window
}

// RoomOccupancy indexes the occupants of a single room in start order.
type RoomOccupancy struct {
	roomID    string
	occupants []Occupant
}

// NewRoomOccupancy builds the index for roomID. Occupants of other rooms and
// bookings that do not hold the room (pending, cancelled) are dropped.
func NewRoomOccupancy(roomID string, slots, bookings []Occupant) RoomOccupancy {
	occupants := make([]Occupant, 0, len(slots)+len(bookings))
	for _, slot := range slots {
		if slot.RoomID != roomID {
			continue
		}
		slot.Kind = KindSlot
		occupants = append(occupants, slot)
	}
	for _, booking := range bookings {
		if booking.RoomID != roomID || !booking.Status.Occupies() {
			continue
		}
		booking.Kind = KindBooking
		occupants = append(occupants, booking)
	}
	slices.SortFunc(occupants, compareOccupants)
	return RoomOccupancy{roomID: roomID, occupants: occupants}
}

// RoomID returns the room the index was built for.
func (o RoomOccupancy) RoomID() string {
	return o.roomID
}

// Len reports the number of indexed occupants.
func (o RoomOccupancy) Len() int {
	return len(o.occupants)
}

// Occupants returns a copy of the indexed occupants in start order.
func (o RoomOccupancy) Occupants() []Occupant {
	return slices.Clone(o.occupants)
}

// ActiveOn returns the occupants holding the room at some point of date d.
func (o RoomOccupancy) ActiveOn(d timewindow.Date) []Occupant {
	var active []Occupant
	for _, occupant := range o.occupants {
		if occupant.Window.ActiveOn(d) {
			active = append(active, occupant)
		}
	}
	return active
}

// Detect returns every occupant of occ that collides with candidate, ordered
// by start clock, kind and id. The occupant whose ID equals excludeID is
// skipped so an existing entry can be re-validated against everything else.
func Detect(occ RoomOccupancy, candidate timewindow.Window, excludeID string) []Conflict {
	var conflicts []Conflict
	for _, occupant := range occ.occupants {
		// Occupants are sorted by start; nothing further can overlap in time.
		if occupant.Window.Start >= candidate.End {
			break
		}
		if excludeID != "" && occupant.ID == excludeID {
			continue
		}
		if !timewindow.Overlaps(occupant.Window, candidate) {
			continue
		}
		conflicts = append(conflicts, Conflict{OccupantRef: occupant.Ref(), Window: occupant.Window})
	}
	return conflicts
}

func compareOccupants(a, b Occupant) int {
	if c := cmp.Compare(a.Window.Start, b.Window.Start); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
