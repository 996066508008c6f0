// database/ledger_store.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

const weeklyLowestColumns = `route_id, depart_date, return_date, min_price, airline, flight_info,
	kal_price, kal_flight_info, pax3_price, miss_count, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanWeeklyLowest(row rowScanner) (*models.WeeklyLowestRecord, error) {
	var (
		rec                 models.WeeklyLowestRecord
		departDate, retDate string
		updatedAt           string
		kalPrice, pax3Price sql.NullInt64
		kalFlightInfo       sql.NullString
	)
	err := row.Scan(&rec.RouteID, &departDate, &retDate, &rec.MinPrice, &rec.Airline, &rec.Legs,
		&kalPrice, &kalFlightInfo, &pax3Price, &rec.MissCount, &updatedAt)
	if err != nil {
		return nil, err
	}

	if rec.Window.Depart, err = parseDate(departDate); err != nil {
		return nil, err
	}
	if rec.Window.Return, err = parseDate(retDate); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = s.parseTime(updatedAt); err != nil {
		return nil, err
	}
	rec.DesignatedPrice = intPtr(kalPrice)
	rec.Pax3Price = intPtr(pax3Price)
	if kalFlightInfo.Valid {
		v := kalFlightInfo.String
		rec.DesignatedLegs = &v
	}
	return &rec, nil
}

// GetWeeklyLowest returns nil, nil when no record exists for key.
func (s *Store) GetWeeklyLowest(ctx context.Context, key models.WindowKey) (*models.WeeklyLowestRecord, error) {
	rec, err := s.getWeeklyLowest(ctx, s.db, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly lowest for %s: %w", key, err)
	}
	return rec, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getWeeklyLowest(ctx context.Context, q queryRower, key models.WindowKey) (*models.WeeklyLowestRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+weeklyLowestColumns+` FROM weekly_lowest
		WHERE route_id = ? AND depart_date = ? AND return_date = ?`,
		key.RouteID, key.Window.Depart.String(), key.Window.Return.String())
	rec, err := s.scanWeeklyLowest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListWeeklyLowest returns the records of one route ordered by departure date.
func (s *Store) ListWeeklyLowest(ctx context.Context, routeID int) ([]models.WeeklyLowestRecord, error) {
	return s.listWeeklyLowest(ctx,
		`SELECT `+weeklyLowestColumns+` FROM weekly_lowest WHERE route_id = ?
		ORDER BY depart_date, return_date`, routeID)
}

// ListAllWeeklyLowest returns every record ordered by route, then departure date.
func (s *Store) ListAllWeeklyLowest(ctx context.Context) ([]models.WeeklyLowestRecord, error) {
	return s.listWeeklyLowest(ctx,
		`SELECT `+weeklyLowestColumns+` FROM weekly_lowest
		ORDER BY route_id, depart_date, return_date`)
}

func (s *Store) listWeeklyLowest(ctx context.Context, query string, args ...any) ([]models.WeeklyLowestRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly lowest: %w", err)
	}
	defer rows.Close()

	var records []models.WeeklyLowestRecord
	for rows.Next() {
		rec, err := s.scanWeeklyLowest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weekly lowest row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// LowestRecord returns the cheapest record of a route (earliest departure on
// ties), or nil when the route has none.
func (s *Store) LowestRecord(ctx context.Context, routeID int) (*models.WeeklyLowestRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+weeklyLowestColumns+` FROM weekly_lowest WHERE route_id = ?
		ORDER BY min_price, depart_date, return_date LIMIT 1`, routeID)
	rec, err := s.scanWeeklyLowest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lowest record of route %d: %w", routeID, err)
	}
	return rec, nil
}

// RouteMinimum is LowestRecord reduced to price and departure date.
func (s *Store) RouteMinimum(ctx context.Context, routeID int) (*models.RouteMinimum, error) {
	rec, err := s.LowestRecord(ctx, routeID)
	if err != nil || rec == nil {
		return nil, err
	}
	return &models.RouteMinimum{Price: rec.MinPrice, DepartDate: rec.Window.Depart}, nil
}

// WindowUpdate decides the next state of one window from the current one
// (nil when absent). When changed is false nothing is written. A nil next
// deletes the record.
type WindowUpdate func(current *models.WeeklyLowestRecord) (next *models.WeeklyLowestRecord, changed bool, err error)

// UpdateWindow runs read, decide and write for one window in a single
// transaction, so a window is never left half-updated.
func (s *Store) UpdateWindow(ctx context.Context, key models.WindowKey, decide WindowUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getWeeklyLowest(ctx, tx, key)
		if err != nil {
			return fmt.Errorf("failed to read weekly lowest for %s: %w", key, err)
		}

		next, changed, err := decide(current)
		if err != nil || !changed {
			return err
		}

		switch {
		case next == nil && current == nil:
			return nil
		case next == nil:
			_, err = tx.ExecContext(ctx,
				`DELETE FROM weekly_lowest WHERE route_id = ? AND depart_date = ? AND return_date = ?`,
				key.RouteID, key.Window.Depart.String(), key.Window.Return.String())
			if err != nil {
				return fmt.Errorf("failed to delete weekly lowest for %s: %w", key, err)
			}
		case current == nil:
			if next.Key() != key {
				return fmt.Errorf("weekly lowest key mismatch: %s != %s", next.Key(), key)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO weekly_lowest (`+weeklyLowestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				next.RouteID, next.Window.Depart.String(), next.Window.Return.String(),
				next.MinPrice, next.Airline, next.Legs,
				nullInt(next.DesignatedPrice), nullString(next.DesignatedLegs), nullInt(next.Pax3Price),
				next.MissCount, s.formatTime(next.UpdatedAt))
			if err != nil {
				return mapWriteError(fmt.Errorf("failed to insert weekly lowest: %w", err), key)
			}
		default:
			_, err = tx.ExecContext(ctx,
				`UPDATE weekly_lowest SET min_price = ?, airline = ?, flight_info = ?,
					kal_price = ?, kal_flight_info = ?, pax3_price = ?, miss_count = ?, updated_at = ?
				WHERE route_id = ? AND depart_date = ? AND return_date = ?`,
				next.MinPrice, next.Airline, next.Legs,
				nullInt(next.DesignatedPrice), nullString(next.DesignatedLegs), nullInt(next.Pax3Price),
				next.MissCount, s.formatTime(next.UpdatedAt),
				key.RouteID, key.Window.Depart.String(), key.Window.Return.String())
			if err != nil {
				return mapWriteError(fmt.Errorf("failed to update weekly lowest: %w", err), key)
			}
		}
		return nil
	})
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
