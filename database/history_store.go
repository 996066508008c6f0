// database/history_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// InsertScan appends an observation to scan_history. A row with the same
// window and price in the same minute is a duplicate and is skipped; the
// returned bool reports whether a row was written.
func (s *Store) InsertScan(ctx context.Context, e models.ScanHistoryEntry) (bool, error) {
	scannedAt := s.formatTime(e.ScannedAt)
	inserted := false

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var dup int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM scan_history
			WHERE route_id = ? AND depart_date = ? AND return_date = ? AND price = ?
			AND substr(scanned_at, 1, 16) = ?`,
			e.RouteID, e.DepartDate.String(), e.ReturnDate.String(), e.Price, scannedAt[:16]).Scan(&dup)
		if err != nil {
			return fmt.Errorf("failed to check scan history duplicate: %w", err)
		}
		if dup > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO scan_history (route_id, depart_date, return_date, price, airline, flight_info, scanned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.RouteID, e.DepartDate.String(), e.ReturnDate.String(), e.Price, e.Airline, e.Legs, scannedAt)
		if err != nil {
			return fmt.Errorf("failed to insert scan history: %w", err)
		}
		inserted = true
		return nil
	})
	return inserted, err
}

// ScanHistoryFilter narrows ListScanHistory. Zero values mean "any".
type ScanHistoryFilter struct {
	RouteID int
	Window  *models.ScanWindow
	Limit   int
}

// ListScanHistory returns matching rows oldest first.
func (s *Store) ListScanHistory(ctx context.Context, f ScanHistoryFilter) ([]models.ScanHistoryEntry, error) {
	query := `SELECT id, route_id, depart_date, return_date, price, airline, flight_info, scanned_at
		FROM scan_history WHERE 1 = 1`
	var args []any
	if f.RouteID != 0 {
		query += " AND route_id = ?"
		args = append(args, f.RouteID)
	}
	if f.Window != nil {
		query += " AND depart_date = ? AND return_date = ?"
		args = append(args, f.Window.Depart.String(), f.Window.Return.String())
	}
	query += " ORDER BY scanned_at, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan history: %w", err)
	}
	defer rows.Close()

	var entries []models.ScanHistoryEntry
	for rows.Next() {
		var (
			e                           models.ScanHistoryEntry
			departDate, retDate, tstamp string
		)
		if err := rows.Scan(&e.ID, &e.RouteID, &departDate, &retDate, &e.Price, &e.Airline, &e.Legs, &tstamp); err != nil {
			return nil, fmt.Errorf("failed to scan scan history row: %w", err)
		}
		if e.DepartDate, err = parseDate(departDate); err != nil {
			return nil, err
		}
		if e.ReturnDate, err = parseDate(retDate); err != nil {
			return nil, err
		}
		if e.ScannedAt, err = s.parseTime(tstamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
