package sqldb

import (
	"context"
	"fmt"

	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/shopspring/decimal"
)

// RoomRepository implements persistence.RoomRepository over database/sql.
type RoomRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const roomColumns = `id, name, capacity, hourly_rate, created_at, updated_at`

// CreateRoom inserts a new room into the database
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 || room.HourlyRate.IsNegative() {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO rooms (id, name, capacity, hourly_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		room.ID,
		room.Name,
		room.Capacity,
		room.HourlyRate.String(),
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateRoom updates an existing room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 || room.HourlyRate.IsNegative() {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE rooms
		SET name = ?, capacity = ?, hourly_rate = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		room.Name,
		room.Capacity,
		room.HourlyRate.String(),
		formatTime(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetRoom retrieves a room by ID from the database
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name then ID
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes a room by ID. The foreign keys on recurring_slots and
// bookings reject the delete while the room is referenced.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                       persistence.Room
		rate                       string
		createdAtStr, updatedAtStr string
	)
	if err := row.Scan(&room.ID, &room.Name, &room.Capacity, &rate, &createdAtStr, &updatedAtStr); err != nil {
		return persistence.Room{}, err
	}

	var err error
	if room.HourlyRate, err = decimal.NewFromString(rate); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse hourly_rate: %w", err)
	}
	if room.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}
