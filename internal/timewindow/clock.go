package timewindow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidClock indicates a malformed or out of range time of day.
var ErrInvalidClock = errors.New("timewindow: invalid time of day")

// MinutesPerDay is the exclusive upper bound of a start clock and the
// inclusive upper bound of an end clock (24:00).
const MinutesPerDay = 24 * 60

// Clock is a wall clock time of day expressed in minutes since midnight.
type Clock int

// NewClock builds a clock from hour and minute components.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ClockOf returns the wall clock of t in its own location, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

// ParseClock parses "HH:MM". "24:00" is accepted so it can close a day.
func ParseClock(value string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return NewClock(hour, minute), nil
}

// Valid reports whether the clock lies within [00:00, 24:00].
func (c Clock) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

// Add shifts the clock by d, truncated to whole minutes.
func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Minute)
}

// Sub returns the duration between two clocks.
func (c Clock) Sub(other Clock) time.Duration {
	return time.Duration(c-other) * time.Minute
}

// On places the clock on the given date in loc. 24:00 resolves to midnight of the next day.
func (c Clock) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc).Add(time.Duration(c) * time.Minute)
}

// String renders HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalJSON encodes the clock as "HH:MM".
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes "HH:MM".
func (c *Clock) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
