package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/hall-scheduler/internal/availability"
	"github.com/example/hall-scheduler/internal/logging"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// Storage drivers accepted by HALL_DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DefaultSQLiteDSN enables foreign keys and a busy timeout on the default database file.
const DefaultSQLiteDSN = "file:hall.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Config captures environment driven configuration values for the hall scheduler.
// A CacheTTL of zero disables the free-period cache.
type Config struct {
	HTTPPort     int
	DBDriver     string
	DBDSN        string
	Location     *time.Location
	WorkingHours availability.Interval
	RedisAddr    string
	LockTTL      time.Duration
	CacheTTL     time.Duration
	LogLevel     slog.Level
}

// LoadDotEnv copies variables from the given files into the process
// environment without overriding values that are already set. Missing files
// are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("環境設定ファイルを読み込めません (%s): %w", path, err)
		}
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every missing and every invalid
// variable is reported in a single localized error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:     8080,
		DBDriver:     DriverSQLite,
		Location:     time.FixedZone("JST", 9*60*60),
		WorkingHours: availability.Interval{Start: timewindow.NewClock(8, 0), End: timewindow.NewClock(22, 0)},
		LockTTL:      10 * time.Second,
		CacheTTL:     30 * time.Second,
		LogLevel:     slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if portValue := lookup("HALL_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "HALL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(lookup("HALL_DB_DRIVER")); driver != "" {
		switch driver {
		case DriverSQLite, DriverPostgres, DriverMemory:
			cfg.DBDriver = driver
		default:
			invalid = append(invalid, "HALL_DB_DRIVER")
		}
	}

	cfg.DBDSN = lookup("HALL_DB_DSN")
	if cfg.DBDSN == "" {
		switch cfg.DBDriver {
		case DriverSQLite:
			cfg.DBDSN = DefaultSQLiteDSN
		case DriverPostgres:
			missing = append(missing, "HALL_DB_DSN")
		}
	}

	if zone := lookup("HALL_TIMEZONE"); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "HALL_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if hoursValue := lookup("HALL_WORKING_HOURS"); hoursValue != "" {
		hours, err := parseWorkingHours(hoursValue)
		if err != nil {
			invalid = append(invalid, "HALL_WORKING_HOURS")
		} else {
			cfg.WorkingHours = hours
		}
	}

	cfg.RedisAddr = lookup("HALL_REDIS_ADDR")

	if ttlValue := lookup("HALL_LOCK_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "HALL_LOCK_TTL")
		} else {
			cfg.LockTTL = ttl
		}
	}

	if ttlValue := lookup("HALL_AVAILABILITY_CACHE_TTL"); ttlValue != "" {
		ttl, err := parseCacheTTL(ttlValue)
		if err != nil {
			invalid = append(invalid, "HALL_AVAILABILITY_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if levelValue := lookup("HALL_LOG_LEVEL"); levelValue != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "HALL_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// parseWorkingHours accepts "HH:MM-HH:MM" with the end strictly after the start.
func parseWorkingHours(value string) (availability.Interval, error) {
	startValue, endValue, ok := strings.Cut(value, "-")
	if !ok {
		return availability.Interval{}, fmt.Errorf("working hours must be HH:MM-HH:MM: %q", value)
	}
	start, err := timewindow.ParseClock(startValue)
	if err != nil {
		return availability.Interval{}, err
	}
	end, err := timewindow.ParseClock(endValue)
	if err != nil {
		return availability.Interval{}, err
	}
	if end <= start {
		return availability.Interval{}, fmt.Errorf("working hours end must be after start: %q", value)
	}
	return availability.Interval{Start: start, End: end}, nil
}

// parseCacheTTL accepts a duration or a bare "0".
func parseCacheTTL(value string) (time.Duration, error) {
	if value == "0" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, fmt.Errorf("cache ttl must not be negative: %q", value)
	}
	return ttl, nil
}
