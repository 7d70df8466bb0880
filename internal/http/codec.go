package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/hall-scheduler/internal/application"
	"github.com/example/hall-scheduler/internal/scheduler"
	"github.com/example/hall-scheduler/internal/timewindow"
)

const maxRequestBody = 1 << 20

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// fieldParser converts wire strings into domain values and collects every
// malformed field into one validation error.
type fieldParser struct {
	errors map[string]string
}

func (p *fieldParser) add(field, message string) {
	if p.errors == nil {
		p.errors = make(map[string]string)
	}
	if _, exists := p.errors[field]; !exists {
		p.errors[field] = message
	}
}

func (p *fieldParser) err() error {
	if len(p.errors) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: p.errors}
}

func (p *fieldParser) clock(field, value string) timewindow.Clock {
	c, err := timewindow.ParseClock(value)
	if err != nil {
		p.add(field, "must be HH:MM")
	}
	return c
}

// date leaves blank values as the zero date for the service to report.
func (p *fieldParser) date(field, value string) timewindow.Date {
	if strings.TrimSpace(value) == "" {
		return timewindow.Date{}
	}
	d, err := timewindow.ParseDate(value)
	if err != nil {
		p.add(field, "must be YYYY-MM-DD")
	}
	return d
}

func (p *fieldParser) optionalDate(field string, value *string) *timewindow.Date {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	d := p.date(field, *value)
	return &d
}

func (p *fieldParser) weekdays(field string, values []string) timewindow.WeekdaySet {
	set, err := timewindow.ParseWeekdaySet(values)
	if err != nil {
		for _, value := range values {
			if _, perr := timewindow.ParseWeekday(value); perr != nil {
				p.add(field, "unknown weekday: "+value)
				break
			}
		}
	}
	return set
}

func (p *fieldParser) timestamp(field, value string) time.Time {
	if strings.TrimSpace(value) == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		p.add(field, "must be an RFC3339 timestamp")
	}
	return t
}

func (p *fieldParser) optionalTimestamp(field string, value *string) *time.Time {
	if value == nil {
		return nil
	}
	t := p.timestamp(field, *value)
	return &t
}

func (p *fieldParser) integer(field, value string) int {
	if strings.TrimSpace(value) == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		p.add(field, "must be an integer")
	}
	return n
}

func formatInstant(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(time.RFC3339)
}

func formatOptionalDate(d *timewindow.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

type conflictDTO struct {
	Kind       string   `json:"kind"`
	ID         string   `json:"id"`
	OccupantID string   `json:"occupant_id,omitempty"`
	Weekdays   []string `json:"weekdays"`
	StartTime  string   `json:"start_time"`
	EndTime    string   `json:"end_time"`
	ValidFrom  string   `json:"valid_from"`
	ValidUntil *string  `json:"valid_until,omitempty"`
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, conflictDTO{
			Kind:       string(conflict.Kind),
			ID:         conflict.ID,
			OccupantID: conflict.OccupantID,
			Weekdays:   conflict.Window.Days.Names(),
			StartTime:  conflict.Window.Start.String(),
			EndTime:    conflict.Window.End.String(),
			ValidFrom:  conflict.Window.Validity.From.String(),
			ValidUntil: formatOptionalDate(conflict.Window.Validity.Until),
		})
	}
	return out
}

func pathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", errInvalidID
	}
	return id, nil
}
