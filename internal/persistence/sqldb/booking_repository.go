package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/hall-scheduler/internal/lifecycle"
	"github.com/example/hall-scheduler/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository over database/sql.
type BookingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const bookingColumns = `id, room_id, occupant_id, starts_at, ends_at, status, created_at, updated_at`

// CreateBooking inserts a new booking
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.RoomID == "" || !booking.Status.Valid() {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		booking.ID,
		booking.RoomID,
		nullableString(booking.OccupantID),
		formatTime(booking.StartsAt),
		formatTime(booking.EndsAt),
		string(booking.Status),
		formatTime(booking.CreatedAt),
		formatTime(booking.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetBooking retrieves a booking by ID
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by start then ID
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.To != nil {
		conditions = append(conditions, "starts_at < ?")
		args = append(args, formatTime(*filter.To))
	}
	if filter.From != nil {
		conditions = append(conditions, "ends_at > ?")
		args = append(args, formatTime(*filter.From))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY starts_at ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return bookings, nil
}

// UpdateBookingStatus moves a booking from one status to another in a single
// transaction, distinguishing a missing booking from a stale status.
func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id string, from, to lifecycle.Status, updatedAt time.Time) error {
	if !to.Valid() {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx,
			`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), formatTime(updatedAt), id, string(from),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 1 {
			return nil
		}

		var current string
		if err := r.helper.QueryRowTx(ctx, tx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&current); err != nil {
			return r.mapper.MapError(err)
		}
		return fmt.Errorf("booking %s is %s: %w", id, current, persistence.ErrStaleStatus)
	})
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking                    persistence.Booking
		occupantID                 sql.NullString
		startsAtStr, endsAtStr     string
		status                     string
		createdAtStr, updatedAtStr string
	)
	err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&occupantID,
		&startsAtStr,
		&endsAtStr,
		&status,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Booking{}, err
	}

	if occupantID.Valid {
		value := occupantID.String
		booking.OccupantID = &value
	}
	if booking.Status, err = lifecycle.ParseStatus(status); err != nil {
		return persistence.Booking{}, err
	}
	if booking.StartsAt, err = parseTime("starts_at", startsAtStr); err != nil {
		return persistence.Booking{}, err
	}
	if booking.EndsAt, err = parseTime("ends_at", endsAtStr); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
