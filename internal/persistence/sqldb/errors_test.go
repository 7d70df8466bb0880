package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/hall-scheduler/internal/persistence"
)

func TestErrorMapper(t *testing.T) {
	t.Parallel()

	other := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), want: persistence.ErrNotFound},
		{name: "sqlite unique", err: errors.New("constraint failed: UNIQUE constraint failed: rooms.id (1555)"), want: persistence.ErrDuplicate},
		{name: "sqlite foreign key", err: errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), want: persistence.ErrForeignKeyViolation},
		{name: "sqlite check", err: errors.New("constraint failed: CHECK constraint failed: capacity > 0 (275)"), want: persistence.ErrConstraintViolation},
		{name: "postgres unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "rooms_pkey"}, want: persistence.ErrDuplicate},
		{name: "postgres foreign key", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23503"}), want: persistence.ErrForeignKeyViolation},
		{name: "postgres check", err: &pgconn.PgError{Code: "23514"}, want: persistence.ErrConstraintViolation},
		{name: "unmapped", err: other, want: other},
	}

	mapper := NewErrorMapper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mapper.MapError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
