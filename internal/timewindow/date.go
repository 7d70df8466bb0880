package timewindow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate indicates a value that is not a YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("timewindow: invalid date")

const dateLayout = "2006-01-02"

// Date is a civil calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes the components through time.Date so overflowing days roll over.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return DateOf(t), nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.midnight().Weekday()
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnight().AddDate(0, 0, n))
}

// DaysSince returns the number of days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.midnight().Sub(other.midnight()).Hours() / 24)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	return d.midnight().Compare(other.midnight())
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// String renders YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes YYYY-MM-DD.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive date span. A nil Until is unbounded.
type DateRange struct {
	From  Date
	Until *Date
}

// SingleDay returns the range covering exactly d.
func SingleDay(d Date) DateRange {
	until := d
	return DateRange{From: d, Until: &until}
}

// Valid reports whether Until is absent or not before From.
func (r DateRange) Valid() bool {
	return r.Until == nil || !r.Until.Before(r.From)
}

// Contains reports whether d lies in the range.
func (r DateRange) Contains(d Date) bool {
	if d.Before(r.From) {
		return false
	}
	return r.Until == nil || !d.After(*r.Until)
}

// Intersects reports whether the ranges share at least one date.
func (r DateRange) Intersects(other DateRange) bool {
	if r.Until != nil && r.Until.Before(other.From) {
		return false
	}
	if other.Until != nil && other.Until.Before(r.From) {
		return false
	}
	return true
}
