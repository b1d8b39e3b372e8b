// Package objectstore resolves repository object names from a SQL database.
// The telemetry normalizer uses it to report the owning item's title for a
// bitstream download.
package objectstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DriverType selects the database driver.
type DriverType string

const (
	// DriverSQLite is the embedded default.
	DriverSQLite DriverType = "sqlite"
	// DriverPostgres is used for server deployments.
	DriverPostgres DriverType = "postgres"
)

// ErrNotFound is returned when an object or its parent is unknown.
var ErrNotFound = errors.New("object not found")

// Config holds the object store configuration.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver DriverType
	// DSN is the SQLite file path or the PostgreSQL connection string.
	DSN string
	// Connection pool settings.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns an embedded SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "data/objects.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// Store provides object-model lookups over a SQL database.
type Store struct {
	db     *sql.DB
	driver DriverType
}

// Open connects to the database, applies pending migrations and returns the
// store.
func Open(cfg Config) (*Store, error) {
	var driverName string
	switch cfg.Driver {
	case DriverSQLite, "":
		driverName = "sqlite3"
	case DriverPostgres:
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported object store driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &Store{db: db, driver: cfg.Driver}
	if store.driver == "" {
		store.driver = DriverSQLite
	}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// migrate applies all pending embedded migrations.
func (s *Store) migrate() error {
	goose.SetBaseFS(embedMigrations)
	dialect := "sqlite3"
	if s.driver == DriverPostgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// ParentContainerName returns the display name of the container owning the
// given object. ErrNotFound is returned when the object is unknown or has no
// parent.
func (s *Store) ParentContainerName(ctx context.Context, objectID string) (string, error) {
	query := s.rebind(`
		SELECT p.name
		FROM objects c
		JOIN objects p ON p.id = c.parent_id
		WHERE c.id = ?`)

	var name string
	err := s.db.QueryRowContext(ctx, query, objectID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("parent of object %s: %w", objectID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up parent of object %s: %w", objectID, err)
	}
	return name, nil
}

// InsertObject adds or replaces one object row. parentID may be empty for
// top-level containers.
func (s *Store) InsertObject(ctx context.Context, id, kind, name, parentID string) error {
	var parent any
	if parentID != "" {
		parent = parentID
	}

	var query string
	if s.driver == DriverPostgres {
		query = s.rebind(`
			INSERT INTO objects (id, kind, name, parent_id) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, name = EXCLUDED.name, parent_id = EXCLUDED.parent_id`)
	} else {
		query = `INSERT OR REPLACE INTO objects (id, kind, name, parent_id) VALUES (?, ?, ?, ?)`
	}

	if _, err := s.db.ExecContext(ctx, query, id, kind, name, parent); err != nil {
		return fmt.Errorf("failed to insert object %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to the PostgreSQL $n form when needed.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
