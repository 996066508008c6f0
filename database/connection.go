// database/connection.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jrkim3888/airplane-ticket-price-tracker/config"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// Timestamps are stored as ISO-8601 text with the reference zone's offset,
// so that substr() prefixes ("YYYY-MM-DDTHH:MM") compare per minute/hour.
const timestampLayout = "2006-01-02T15:04:05-07:00"

// Store owns the connection pool. It is the only writer of the ledger,
// history and snapshot tables.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	location *time.Location
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, location *time.Location) (*Store, error) {
	switch Dialect(cfg.Driver) {
	case DialectSQLite:
		return OpenSQLite(ctx, cfg.Path, location)
	case DialectMySQL:
		return OpenMySQL(ctx, cfg, location)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenSQLite opens (creating if needed) a SQLite file. ":memory:" is accepted
// for tests.
func OpenSQLite(ctx context.Context, path string, location *time.Location) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return finishOpen(ctx, db, DialectSQLite, location)
}

// OpenMySQL connects to a MySQL/MariaDB server.
func OpenMySQL(ctx context.Context, cfg config.DatabaseConfig, location *time.Location) (*Store, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return finishOpen(ctx, db, DialectMySQL, location)
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.DBName
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func finishOpen(ctx context.Context, db *sql.DB, dialect Dialect, location *time.Location) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if location == nil {
		location = time.UTC
	}

	s := &Store{db: db, dialect: dialect, location: location}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	slog.Info("Database: connected", "driver", string(dialect))
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	slog.Info("Database: connection closed")
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Dialect() Dialect { return s.dialect }

// withTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) formatTime(t time.Time) string {
	return t.In(s.location).Format(timestampLayout)
}

func (s *Store) parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, v)
	if err != nil {
		// rows written by older versions carry fractional seconds
		t, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", v, err)
		}
	}
	return t.In(s.location), nil
}

func parseDate(v string) (models.Date, error) {
	d, err := models.ParseDate(v)
	if err != nil {
		return models.Date{}, fmt.Errorf("invalid stored date: %w", err)
	}
	return d, nil
}

type sqliteCoder interface {
	Code() int
}

// isUniqueViolation recognizes duplicate-key errors of both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqliteCoder
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mapWriteError turns duplicate-key failures into models.ErrLedgerConflict.
func mapWriteError(err error, key models.WindowKey) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s: %v", models.ErrLedgerConflict, key, err)
	}
	return err
}
