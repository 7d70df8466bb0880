package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/hall-scheduler/internal/availability"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/recurrence"
	"github.com/example/hall-scheduler/internal/roomlock"
	"github.com/example/hall-scheduler/internal/timewindow"
	"github.com/google/uuid"
)

var defaultLocation = time.FixedZone("JST", 9*60*60)

// DefaultWorkingHours is the bookable part of a day when none is configured.
var DefaultWorkingHours = availability.Interval{
	Start: timewindow.NewClock(8, 0),
	End:   timewindow.NewClock(22, 0),
}

// Options configures the service set. Zero values select defaults: JST,
// DefaultWorkingHours, an in-process room lock and random UUIDs. Location is
// the zone booking instants are reduced to dates in. A negative CacheTTL
// disables the free-period cache.
type Options struct {
	Location     *time.Location
	WorkingHours availability.Interval
	Locker       roomlock.Locker
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
	CacheTTL     time.Duration
	CacheEntries int
}

// Services groups the application services sharing one store, lock and cache.
type Services struct {
	Rooms        *RoomService
	Slots        *SlotService
	Bookings     *BookingService
	Conflicts    *ConflictService
	Availability *AvailabilityService
	Calendar     *CalendarService
}

// engine carries the dependencies shared by the occupancy-aware services.
type engine struct {
	rooms       persistence.RoomRepository
	slots       persistence.SlotRepository
	bookings    persistence.BookingRepository
	loader      occupancyLoader
	locker      roomlock.Locker
	cache       *freePeriodCache
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	hours       availability.Interval
	logger      *slog.Logger
}

// NewServices wires every service over store.
func NewServices(store persistence.Store, opts Options) *Services {
	e := newEngine(store, opts)
	rooms := NewRoomService(e.rooms, e.idGenerator, e.now, e.logger)
	rooms.cache = e.cache
	return &Services{
		Rooms:        rooms,
		Slots:        &SlotService{engine: e},
		Bookings:     &BookingService{engine: e},
		Conflicts:    &ConflictService{engine: e},
		Availability: &AvailabilityService{engine: e},
		Calendar:     &CalendarService{engine: e, expander: recurrence.NewEngine(e.location)},
	}
}

func newEngine(store persistence.Store, opts Options) *engine {
	if opts.Location == nil {
		opts.Location = defaultLocation
	}
	if opts.WorkingHours.Empty() {
		opts.WorkingHours = DefaultWorkingHours
	}
	if opts.Locker == nil {
		opts.Locker = roomlock.NewLocal()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = newUUID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var cache *freePeriodCache
	if opts.CacheTTL >= 0 {
		cache = newFreePeriodCache(opts.CacheTTL, opts.CacheEntries, opts.Now)
	}

	return &engine{
		rooms:    store.Rooms(),
		slots:    store.Slots(),
		bookings: store.Bookings(),
		loader: occupancyLoader{
			slots:    store.Slots(),
			bookings: store.Bookings(),
			location: opts.Location,
		},
		locker:      opts.Locker,
		cache:       cache,
		idGenerator: opts.IDGenerator,
		now:         opts.Now,
		location:    opts.Location,
		hours:       opts.WorkingHours,
		logger:      defaultLogger(opts.Logger),
	}
}

// requireRoom maps a missing room to ErrNotFound.
func (e *engine) requireRoom(ctx context.Context, roomID string) error {
	if _, err := e.rooms.GetRoom(ctx, roomID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func newUUID() string {
	return uuid.NewString()
}
