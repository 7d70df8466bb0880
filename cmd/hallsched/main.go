package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"

	"github.com/example/hall-scheduler/internal/application"
	"github.com/example/hall-scheduler/internal/config"
	httptransport "github.com/example/hall-scheduler/internal/http"
	"github.com/example/hall-scheduler/internal/logging"
	"github.com/example/hall-scheduler/internal/persistence"
	"github.com/example/hall-scheduler/internal/persistence/memory"
	"github.com/example/hall-scheduler/internal/persistence/sqldb"
	"github.com/example/hall-scheduler/internal/roomlock"
)

func main() {
	bootstrap := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		bootstrap.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	locker, closeLocker := newLocker(cfg)
	defer closeLocker()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(store, locker, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("hall scheduler API listening",
		"addr", server.Addr,
		"db_driver", cfg.DBDriver,
		"distributed_lock", cfg.RedisAddr != "",
		"location", cfg.Location.String(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (persistence.Store, error) {
	if cfg.DBDriver == config.DriverMemory {
		return memory.New(), nil
	}
	return sqldb.Open(ctx, cfg.DBDriver, cfg.DBDSN)
}

// newLocker returns a Redis lock when an address is configured so several
// instances can share one database.
func newLocker(cfg config.Config) (roomlock.Locker, func()) {
	if cfg.RedisAddr == "" {
		return roomlock.NewLocal(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return roomlock.NewRedis(client, cfg.LockTTL), func() { _ = client.Close() }
}

func newHandler(store persistence.Store, locker roomlock.Locker, cfg config.Config, logger *slog.Logger) http.Handler {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = -1
	}

	services := application.NewServices(store, application.Options{
		Location:     cfg.Location,
		WorkingHours: cfg.WorkingHours,
		Locker:       locker,
		Logger:       logger,
		CacheTTL:     cacheTTL,
	})

	return httptransport.NewRouter(httptransport.RouterConfig{
		Health:    httptransport.NewHealthHandler(store, logger),
		Rooms:     httptransport.NewRoomHandler(services.Rooms, logger),
		Slots:     httptransport.NewSlotHandler(services.Slots, logger),
		Bookings:  httptransport.NewBookingHandler(services.Bookings, cfg.Location, logger),
		Occupancy: httptransport.NewOccupancyHandler(services.Availability, services.Conflicts, services.Calendar, cfg.Location, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})
}
