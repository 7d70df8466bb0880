package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/hall-scheduler/internal/application"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/roomlock"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks. CacheTTL is passed through unchanged,
// so a negative value disables the free-period cache.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
	Logger      *slog.Logger
	Locker      roomlock.Locker
	CacheTTL    time.Duration
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults: the reference
// clock, "id" identifiers, the fixture zone and a discarding logger.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    Zone,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocker overrides the room lock.
func WithLocker(locker roomlock.Locker) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Locker = locker
	}
}

// WithoutCache disables the free-period cache.
func WithoutCache() ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.CacheTTL = -1
	}
}

// Options returns the application options the factory stands for.
func (f *ServiceFactory) Options() application.Options {
	return application.Options{
		Location:    f.Location,
		Locker:      f.Locker,
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         f.Clock.NowFunc(),
		Logger:      f.Logger,
		CacheTTL:    f.CacheTTL,
	}
}

// NewServices builds the full service set over store.
func (f *ServiceFactory) NewServices(store persistence.Store) *application.Services {
	return application.NewServices(store, f.Options())
}
