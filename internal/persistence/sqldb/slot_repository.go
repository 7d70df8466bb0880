package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// SlotRepository implements persistence.SlotRepository over database/sql.
// Weekdays are stored as a bitmask and clocks as minutes since midnight.
type SlotRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSlotRepository creates a new recurring slot repository
func NewSlotRepository(pool *ConnectionPool) *SlotRepository {
	return &SlotRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const slotColumns = `id, room_id, occupant_id, weekdays, start_minute, end_minute, valid_from, valid_until, created_at, updated_at`

// CreateSlot inserts a new recurring slot
func (r *SlotRepository) CreateSlot(ctx context.Context, slot persistence.RecurringSlot) error {
	if slot.ID == "" || slot.RoomID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO recurring_slots (` + slotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		slot.ID,
		slot.RoomID,
		slot.OccupantID,
		int(slot.Weekdays),
		int(slot.Start),
		int(slot.End),
		slot.ValidFrom.String(),
		nullableDate(slot.ValidUntil),
		formatTime(slot.CreatedAt),
		formatTime(slot.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateSlot replaces an existing recurring slot
func (r *SlotRepository) UpdateSlot(ctx context.Context, slot persistence.RecurringSlot) error {
	if slot.ID == "" || slot.RoomID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE recurring_slots
		SET room_id = ?, occupant_id = ?, weekdays = ?, start_minute = ?, end_minute = ?,
		    valid_from = ?, valid_until = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		slot.RoomID,
		slot.OccupantID,
		int(slot.Weekdays),
		int(slot.Start),
		int(slot.End),
		slot.ValidFrom.String(),
		nullableDate(slot.ValidUntil),
		formatTime(slot.UpdatedAt),
		slot.ID,
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

// GetSlot retrieves a recurring slot by ID
func (r *SlotRepository) GetSlot(ctx context.Context, id string) (persistence.RecurringSlot, error) {
	if id == "" {
		return persistence.RecurringSlot{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+slotColumns+` FROM recurring_slots WHERE id = ?`, id)
	slot, err := scanSlot(row)
	if err != nil {
		return persistence.RecurringSlot{}, r.mapper.MapError(err)
	}
	return slot, nil
}

// ListSlots returns slots matching filter ordered by start clock then ID.
// The active-on filter is evaluated in SQL against the weekday bitmask and
// the validity range.
func (r *SlotRepository) ListSlots(ctx context.Context, filter persistence.SlotFilter) ([]persistence.RecurringSlot, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.ActiveOn != nil {
		day := filter.ActiveOn.String()
		conditions = append(conditions,
			"(weekdays & ?) <> 0",
			"valid_from <= ?",
			"(valid_until IS NULL OR valid_until >= ?)",
		)
		args = append(args, int(timewindow.NewWeekdaySet(filter.ActiveOn.Weekday())), day, day)
	}

	query := `SELECT ` + slotColumns + ` FROM recurring_slots`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY start_minute ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	slots := make([]persistence.RecurringSlot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return slots, nil
}

// DeleteSlot removes a recurring slot by ID
func (r *SlotRepository) DeleteSlot(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `DELETE FROM recurring_slots WHERE id = ?`, id)
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

func scanSlot(row rowScanner) (persistence.RecurringSlot, error) {
	var (
		slot                       persistence.RecurringSlot
		weekdays, start, end       int
		validFrom                  string
		validUntil                 sql.NullString
		createdAtStr, updatedAtStr string
	)
	err := row.Scan(
		&slot.ID,
		&slot.RoomID,
		&slot.OccupantID,
		&weekdays,
		&start,
		&end,
		&validFrom,
		&validUntil,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.RecurringSlot{}, err
	}

	slot.Weekdays = timewindow.WeekdaySet(weekdays)
	if !slot.Weekdays.Valid() {
		return persistence.RecurringSlot{}, fmt.Errorf("invalid weekdays mask %d for slot %s", weekdays, slot.ID)
	}
	slot.Start = timewindow.Clock(start)
	slot.End = timewindow.Clock(end)

	if slot.ValidFrom, err = timewindow.ParseDate(validFrom); err != nil {
		return persistence.RecurringSlot{}, fmt.Errorf("failed to parse valid_from: %w", err)
	}
	if slot.ValidUntil, err = parseNullableDate("valid_until", validUntil); err != nil {
		return persistence.RecurringSlot{}, err
	}
	if slot.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.RecurringSlot{}, err
	}
	if slot.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.RecurringSlot{}, err
	}
	return slot, nil
}
