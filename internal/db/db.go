// Package db is the persistence adapter. It hides which SQL engine backs the
// service behind a prepare/run/get/all contract with positional parameters.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Dialect identifies the SQL engine in use.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// FileName is the SQLite database file created inside the data directory.
const FileName = "mission-control.db"

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unknown database driver %q", s)
}

// Options selects and locates the database.
type Options struct {
	Dialect Dialect
	// DSN is the Postgres connection string. For SQLite it overrides the
	// file path derived from DataDir.
	DSN     string
	DataDir string
}

// DB is an open database handle bound to one dialect.
type DB struct {
	sql     *sql.DB
	dialect Dialect
	logger  zerolog.Logger
}

// Open connects to the configured engine and creates the schema if absent.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (*DB, error) {
	logger = logger.With().Str("component", "db").Str("dialect", string(opts.Dialect)).Logger()

	var (
		sqlDB *sql.DB
		err   error
	)
	switch opts.Dialect {
	case DialectPostgres:
		sqlDB, err = openPostgres(ctx, opts.DSN)
	case DialectSQLite, "":
		opts.Dialect = DialectSQLite
		sqlDB, err = openSQLite(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}
	if err != nil {
		return nil, err
	}

	d := &DB{sql: sqlDB, dialect: opts.Dialect, logger: logger}
	if err := d.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Info().Msg("database initialized")
	return d, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres requires a connection string")
	}
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqlDB, nil
}

func openSQLite(ctx context.Context, opts Options) (*sql.DB, error) {
	path := opts.DSN
	if path == "" {
		dir := opts.DataDir
		if dir == "" {
			dir = "data"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		path = filepath.Join(dir, FileName)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps the PRAGMAs below in effect.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return sqlDB, nil
}

// Dialect reports the engine behind this handle.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Ping verifies the engine is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.sql != nil {
		return d.sql.Close()
	}
	return nil
}
