// database/schema.go
package database

import (
	"context"
	"fmt"
	"log/slog"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS routes (
		id INTEGER PRIMARY KEY,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		depart_time_from INTEGER NOT NULL DEFAULT 18,
		return_time_from INTEGER NOT NULL DEFAULT 16
	)`,
	`CREATE TABLE IF NOT EXISTS weekly_lowest (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id INTEGER NOT NULL,
		depart_date TEXT NOT NULL,
		return_date TEXT NOT NULL,
		min_price INTEGER NOT NULL,
		airline TEXT NOT NULL,
		flight_info TEXT NOT NULL,
		kal_price INTEGER,
		kal_flight_info TEXT,
		pax3_price INTEGER,
		miss_count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (route_id) REFERENCES routes(id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_weekly_lowest_route_dates
		ON weekly_lowest(route_id, depart_date, return_date)`,
	`CREATE TABLE IF NOT EXISTS scan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id INTEGER NOT NULL,
		depart_date TEXT NOT NULL,
		return_date TEXT NOT NULL,
		price INTEGER NOT NULL,
		airline TEXT NOT NULL,
		flight_info TEXT NOT NULL,
		scanned_at TEXT NOT NULL,
		FOREIGN KEY (route_id) REFERENCES routes(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_history_window
		ON scan_history(route_id, depart_date, return_date, scanned_at)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id INTEGER NOT NULL,
		snapshot_at TEXT NOT NULL,
		overall_min_price INTEGER NOT NULL,
		airline TEXT NOT NULL,
		depart_date TEXT NOT NULL,
		flight_info TEXT NOT NULL,
		FOREIGN KEY (route_id) REFERENCES routes(id)
	)`,
	`CREATE TABLE IF NOT EXISTS weekly_price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id INTEGER NOT NULL,
		depart_date TEXT NOT NULL,
		return_date TEXT NOT NULL,
		snapshot_at TEXT NOT NULL,
		min_price INTEGER NOT NULL,
		airline TEXT NOT NULL,
		flight_info TEXT NOT NULL,
		FOREIGN KEY (route_id) REFERENCES routes(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_price_history_route
		ON weekly_price_history(route_id, depart_date, snapshot_at)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS routes (
		id INT NOT NULL PRIMARY KEY,
		origin VARCHAR(3) NOT NULL,
		destination VARCHAR(3) NOT NULL,
		label VARCHAR(64) NOT NULL DEFAULT '',
		depart_time_from INT NOT NULL DEFAULT 18,
		return_time_from INT NOT NULL DEFAULT 16
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS weekly_lowest (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		route_id INT NOT NULL,
		depart_date VARCHAR(10) NOT NULL,
		return_date VARCHAR(10) NOT NULL,
		min_price INT NOT NULL,
		airline VARCHAR(64) NOT NULL,
		flight_info VARCHAR(255) NOT NULL,
		kal_price INT NULL,
		kal_flight_info VARCHAR(255) NULL,
		pax3_price INT NULL,
		miss_count INT NOT NULL DEFAULT 0,
		updated_at VARCHAR(32) NOT NULL,
		UNIQUE KEY idx_weekly_lowest_route_dates (route_id, depart_date, return_date),
		FOREIGN KEY (route_id) REFERENCES routes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS scan_history (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		route_id INT NOT NULL,
		depart_date VARCHAR(10) NOT NULL,
		return_date VARCHAR(10) NOT NULL,
		price INT NOT NULL,
		airline VARCHAR(64) NOT NULL,
		flight_info VARCHAR(255) NOT NULL,
		scanned_at VARCHAR(32) NOT NULL,
		KEY idx_scan_history_window (route_id, depart_date, return_date, scanned_at),
		FOREIGN KEY (route_id) REFERENCES routes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		route_id INT NOT NULL,
		snapshot_at VARCHAR(32) NOT NULL,
		overall_min_price INT NOT NULL,
		airline VARCHAR(64) NOT NULL,
		depart_date VARCHAR(10) NOT NULL,
		flight_info VARCHAR(255) NOT NULL,
		KEY idx_price_history_route (route_id, snapshot_at),
		FOREIGN KEY (route_id) REFERENCES routes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS weekly_price_history (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		route_id INT NOT NULL,
		depart_date VARCHAR(10) NOT NULL,
		return_date VARCHAR(10) NOT NULL,
		snapshot_at VARCHAR(32) NOT NULL,
		min_price INT NOT NULL,
		airline VARCHAR(64) NOT NULL,
		flight_info VARCHAR(255) NOT NULL,
		KEY idx_weekly_price_history_route (route_id, depart_date, snapshot_at),
		FOREIGN KEY (route_id) REFERENCES routes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// addedColumn is a column introduced after the first schema. Databases created
// before it existed get it through ALTER TABLE.
type addedColumn struct {
	table      string
	column     string
	sqliteType string
	mysqlType  string
}

var addedColumns = []addedColumn{
	{"weekly_lowest", "pax3_price", "INTEGER", "INT NULL"},
	{"weekly_lowest", "miss_count", "INTEGER NOT NULL DEFAULT 0", "INT NOT NULL DEFAULT 0"},
	{"routes", "label", "TEXT NOT NULL DEFAULT ''", "VARCHAR(64) NOT NULL DEFAULT ''"},
}

func (s *Store) migrate(ctx context.Context) error {
	statements := sqliteSchema
	if s.dialect == DialectMySQL {
		statements = mysqlSchema
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	for _, c := range addedColumns {
		if err := s.ensureColumn(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureColumn(ctx context.Context, c addedColumn) error {
	exists, err := s.columnExists(ctx, c.table, c.column)
	if err != nil {
		return fmt.Errorf("failed to inspect %s.%s: %w", c.table, c.column, err)
	}
	if exists {
		return nil
	}

	colType := c.sqliteType
	if s.dialect == DialectMySQL {
		colType = c.mysqlType
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, colType)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", c.table, c.column, err)
	}
	slog.Info("Database: migrated column", "table", c.table, "column", c.column)
	return nil
}

func (s *Store) columnExists(ctx context.Context, table, column string) (bool, error) {
	var query string
	switch s.dialect {
	case DialectMySQL:
		query = `SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
	default:
		query = `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, table, column).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
