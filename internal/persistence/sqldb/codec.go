package sqldb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/example/hall-scheduler/internal/timewindow"
)

// Instants are stored as UTC RFC3339 text so lexical order matches time order
// in both dialects.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return t, nil
}

func nullableDate(d *timewindow.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullableDate(column string, value sql.NullString) (*timewindow.Date, error) {
	if !value.Valid {
		return nil, nil
	}
	d, err := timewindow.ParseDate(value.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return &d, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}
