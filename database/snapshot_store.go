// database/snapshot_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// InsertPriceSnapshot records a route's overall minimum.
func (s *Store) InsertPriceSnapshot(ctx context.Context, p models.PriceSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history (route_id, snapshot_at, overall_min_price, airline, depart_date, flight_info)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.RouteID, s.formatTime(p.SnapshotAt), p.OverallMinPrice, p.Airline, p.DepartDate.String(), p.Legs)
	if err != nil {
		return fmt.Errorf("failed to insert price snapshot for route %d: %w", p.RouteID, err)
	}
	return nil
}

// InsertWeeklySnapshot records one window's price unless the same departure
// already has a snapshot with that price in the same hour.
func (s *Store) InsertWeeklySnapshot(ctx context.Context, w models.WeeklySnapshot) (bool, error) {
	snapshotAt := s.formatTime(w.SnapshotAt)
	inserted := false

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var dup int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM weekly_price_history
			WHERE route_id = ? AND depart_date = ? AND substr(snapshot_at, 1, 13) = ? AND min_price = ?`,
			w.RouteID, w.Window.Depart.String(), snapshotAt[:13], w.MinPrice).Scan(&dup)
		if err != nil {
			return fmt.Errorf("failed to check weekly snapshot duplicate: %w", err)
		}
		if dup > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO weekly_price_history (route_id, depart_date, return_date, snapshot_at, min_price, airline, flight_info)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.RouteID, w.Window.Depart.String(), w.Window.Return.String(), snapshotAt, w.MinPrice, w.Airline, w.Legs)
		if err != nil {
			return fmt.Errorf("failed to insert weekly snapshot: %w", err)
		}
		inserted = true
		return nil
	})
	return inserted, err
}

// RecentPriceSnapshots returns up to limit snapshots of a route, newest first.
func (s *Store) RecentPriceSnapshots(ctx context.Context, routeID, limit int) ([]models.PriceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT route_id, snapshot_at, overall_min_price, airline, depart_date, flight_info
		FROM price_history WHERE route_id = ? ORDER BY snapshot_at DESC, id DESC LIMIT ?`,
		routeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history of route %d: %w", routeID, err)
	}
	defer rows.Close()

	var snapshots []models.PriceSnapshot
	for rows.Next() {
		var (
			p                  models.PriceSnapshot
			tstamp, departDate string
		)
		if err := rows.Scan(&p.RouteID, &tstamp, &p.OverallMinPrice, &p.Airline, &departDate, &p.Legs); err != nil {
			return nil, fmt.Errorf("failed to scan price history row: %w", err)
		}
		if p.SnapshotAt, err = s.parseTime(tstamp); err != nil {
			return nil, err
		}
		if p.DepartDate, err = parseDate(departDate); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, p)
	}
	return snapshots, rows.Err()
}

// RecentWeeklySnapshots returns up to limit snapshots of one departure date,
// newest first.
func (s *Store) RecentWeeklySnapshots(ctx context.Context, routeID int, depart models.Date, limit int) ([]models.WeeklySnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT route_id, depart_date, return_date, snapshot_at, min_price, airline, flight_info
		FROM weekly_price_history WHERE route_id = ? AND depart_date = ?
		ORDER BY snapshot_at DESC, id DESC LIMIT ?`,
		routeID, depart.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly history of route %d %s: %w", routeID, depart, err)
	}
	defer rows.Close()

	var snapshots []models.WeeklySnapshot
	for rows.Next() {
		var (
			w                           models.WeeklySnapshot
			departDate, retDate, tstamp string
		)
		if err := rows.Scan(&w.RouteID, &departDate, &retDate, &tstamp, &w.MinPrice, &w.Airline, &w.Legs); err != nil {
			return nil, fmt.Errorf("failed to scan weekly history row: %w", err)
		}
		if w.Window.Depart, err = parseDate(departDate); err != nil {
			return nil, err
		}
		if w.Window.Return, err = parseDate(retDate); err != nil {
			return nil, err
		}
		if w.SnapshotAt, err = s.parseTime(tstamp); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, w)
	}
	return snapshots, rows.Err()
}
