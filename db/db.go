// ABOUTME: Database connection management and initialization
// ABOUTME: Opens Postgres or SQLite through sqlx and picks the matching SQL builder flavor
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ErrNotFound is returned by mutations that target a row which no longer exists.
var ErrNotFound = errors.New("not found")

// Store wraps a database handle. Inside InTx the same methods run on the transaction.
type Store struct {
	db     *sqlx.DB
	ext    sqlx.ExtContext
	flavor sqlbuilder.Flavor
	inTx   bool
}

// Open connects to the database, applies pending migrations and returns a Store.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "sqlite" {
		driver = DriverSQLite
	}

	switch driver {
	case DriverSQLite:
		// Ensure directory exists
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if err := Migrate(driver, dsn); err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(driver, connectionString(driver, dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// Single writer avoids "database is locked" under concurrent syncs
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(20)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewStore(conn), nil
}

// NewStore wraps an existing connection. The flavor follows the driver name.
func NewStore(conn *sqlx.DB) *Store {
	return &Store{
		db:     conn,
		ext:    conn,
		flavor: flavorFor(conn.DriverName()),
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	txStore := &Store{db: s.db, ext: tx, flavor: s.flavor, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest any, b sqlbuilder.Builder) error {
	query, args := b.BuildWithFlavor(s.flavor)
	return sqlx.GetContext(ctx, s.ext, dest, query, args...)
}

func (s *Store) selectAll(ctx context.Context, dest any, b sqlbuilder.Builder) error {
	query, args := b.BuildWithFlavor(s.flavor)
	return sqlx.SelectContext(ctx, s.ext, dest, query, args...)
}

func (s *Store) exec(ctx context.Context, b sqlbuilder.Builder) (int64, error) {
	query, args := b.BuildWithFlavor(s.flavor)
	res, err := s.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func flavorFor(driver string) sqlbuilder.Flavor {
	if driver == DriverSQLite {
		return sqlbuilder.SQLite
	}
	return sqlbuilder.PostgreSQL
}

func connectionString(driver, dsn string) string {
	if driver != DriverSQLite || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
