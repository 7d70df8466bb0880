package sqldb

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Migrate applies every pending migration for the pool's dialect and returns
// the resulting schema version.
func Migrate(ctx context.Context, pool *ConnectionPool) (int64, error) {
	var (
		dialect goose.Dialect
		dir     string
	)
	switch pool.Dialect() {
	case DialectSQLite:
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite"
	case DialectPostgres:
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	default:
		return 0, fmt.Errorf("sqldb: no migrations for dialect %q", pool.Dialect())
	}

	fsys, err := fs.Sub(migrationFS, dir)
	if err != nil {
		return 0, fmt.Errorf("open migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialect, pool.DB(), fsys)
	if err != nil {
		return 0, fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}
