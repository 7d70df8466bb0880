package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorMapper maps driver errors to persistence layer errors
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError maps SQLite and PostgreSQL errors to persistence layer errors.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", persistence.ErrForeignKeyViolation, pgErr.ConstraintName)
		case "23514", "23502":
			return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.ConstraintName)
		}
		return err
	}

	errStr := err.Error()

	// Foreign key failures also contain "constraint failed"; match them first.
	if containsAny(errStr, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	}
	if containsAny(errStr, "UNIQUE constraint failed", "PRIMARY KEY") {
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	}
	if containsAny(errStr, "CHECK constraint failed", "NOT NULL constraint failed") {
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}

	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
