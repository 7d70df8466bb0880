package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/hall-scheduler/internal/persistence"
)

// RoomService manages the hall catalog.
type RoomService struct {
	rooms       persistence.RoomRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	cache       *freePeriodCache
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms persistence.RoomRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = newUUID
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room.
func (s *RoomService) CreateRoom(ctx context.Context, input RoomInput) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if vErr := validateRoomInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	room = Room{
		ID:         s.idGenerator(),
		Name:       strings.TrimSpace(input.Name),
		Capacity:   input.Capacity,
		HourlyRate: input.HourlyRate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.rooms.CreateRoom(ctx, room); err != nil {
		err = mapRoomRepoError(err)
		room = Room{}
	}
	return
}

// UpdateRoom replaces the administrative fields of an existing room.
func (s *RoomService) UpdateRoom(ctx context.Context, roomID string, input RoomInput) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom", "room_id", roomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	if vErr := validateRoomInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Capacity = input.Capacity
	existing.HourlyRate = input.HourlyRate
	existing.UpdatedAt = s.now()

	if err = s.rooms.UpdateRoom(ctx, existing); err != nil {
		err = mapRoomRepoError(err)
		return
	}
	room = existing
	return
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// DeleteRoom removes a room nothing references any more.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID string) error {
	if s == nil || s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom", "room_id", roomID)

	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	s.cache.InvalidateRoom(roomID)

	logger.InfoContext(ctx, "room deleted")
	return nil
}

// ListRooms returns the catalog ordered by name.
func (s *RoomService) ListRooms(ctx context.Context) (rooms []Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListRooms")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	rooms, err = s.rooms.ListRooms(ctx)
	if err != nil {
		return
	}

	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	if input.HourlyRate.IsNegative() {
		vErr.add("hourly_rate", "hourly rate must not be negative")
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrRoomInUse
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	return err
}
