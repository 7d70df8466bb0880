package timewindow

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"
)

// ErrInvalidWeekday indicates a weekday name that does not map to time.Weekday.
var ErrInvalidWeekday = errors.New("timewindow: invalid weekday")

// WeekdaySet is a bitset of weekdays where bit n corresponds to time.Weekday(n).
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

var weekdayNames = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// NewWeekdaySet builds a set from the supplied weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var set WeekdaySet
	for _, day := range days {
		set = set.With(day)
	}
	return set
}

// With returns a copy of the set including day.
func (s WeekdaySet) With(day time.Weekday) WeekdaySet {
	if day < time.Sunday || day > time.Saturday {
		return s
	}
	return s | 1<<uint(day)
}

// Contains reports whether day is a member of the set.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	if day < time.Sunday || day > time.Saturday {
		return false
	}
	return s&(1<<uint(day)) != 0
}

// Intersects reports whether the two sets share at least one weekday.
func (s WeekdaySet) Intersects(other WeekdaySet) bool {
	return s&other != 0
}

// IsEmpty reports whether no weekday is selected.
func (s WeekdaySet) IsEmpty() bool {
	return s&allWeekdays == 0
}

// Valid reports whether the set is non-empty and carries no stray bits.
func (s WeekdaySet) Valid() bool {
	return !s.IsEmpty() && s&^allWeekdays == 0
}

// Len returns the number of selected weekdays.
func (s WeekdaySet) Len() int {
	return bits.OnesCount8(uint8(s & allWeekdays))
}

// Days lists the members in Sunday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, s.Len())
	for day := time.Sunday; day <= time.Saturday; day++ {
		if s.Contains(day) {
			days = append(days, day)
		}
	}
	return days
}

// Names lists the short names of the members in Sunday-first order.
func (s WeekdaySet) Names() []string {
	days := s.Days()
	names := make([]string, len(days))
	for i, day := range days {
		names[i] = weekdayNames[day]
	}
	return names
}

// String renders the set as a comma separated list of short names.
func (s WeekdaySet) String() string {
	return strings.Join(s.Names(), ",")
}

// ParseWeekday maps English short or long weekday names to time.Weekday.
func ParseWeekday(value string) (time.Weekday, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if len(normalized) >= 3 {
		for i, name := range weekdayNames {
			full := strings.ToLower(time.Weekday(i).String())
			if normalized == name || normalized == full {
				return time.Weekday(i), nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
}

// ParseWeekdaySet parses every name and rejects the whole input on the first
// unknown value.
func ParseWeekdaySet(values []string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, value := range values {
		day, err := ParseWeekday(value)
		if err != nil {
			return 0, err
		}
		set = set.With(day)
	}
	return set, nil
}

// MarshalJSON encodes the set as an array of short names.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes an array of weekday names.
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseWeekdaySet(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
