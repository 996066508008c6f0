// database/route_store.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// SyncRoutes inserts configured routes that are missing and refreshes the
// label and cutoffs of existing ones. Routes removed from the config are kept
// so their history stays joinable.
func (s *Store) SyncRoutes(ctx context.Context, routes []models.Route) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range routes {
			var exists int
			err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM routes WHERE id = ?", r.ID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to look up route %d: %w", r.ID, err)
			}

			if exists == 0 {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO routes (id, origin, destination, label, depart_time_from, return_time_from)
					VALUES (?, ?, ?, ?, ?, ?)`,
					r.ID, r.Origin, r.Destination, r.Label, r.DepartTimeFrom, r.ReturnTimeFrom)
				if err != nil {
					return fmt.Errorf("failed to insert route %d (%s): %w", r.ID, r, err)
				}
				slog.Info("Database: route registered", "route_id", r.ID, "route", r.String())
				continue
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE routes SET origin = ?, destination = ?, label = ?, depart_time_from = ?, return_time_from = ?
				WHERE id = ?`,
				r.Origin, r.Destination, r.Label, r.DepartTimeFrom, r.ReturnTimeFrom, r.ID)
			if err != nil {
				return fmt.Errorf("failed to update route %d (%s): %w", r.ID, r, err)
			}
		}
		return nil
	})
}

func (s *Store) GetRoutes(ctx context.Context) ([]models.Route, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, origin, destination, label, depart_time_from, return_time_from FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.ID, &r.Origin, &r.Destination, &r.Label, &r.DepartTimeFrom, &r.ReturnTimeFrom); err != nil {
			return nil, fmt.Errorf("failed to scan route row: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// GetRoute returns nil, nil when the id is unknown.
func (s *Store) GetRoute(ctx context.Context, id int) (*models.Route, error) {
	var r models.Route
	err := s.db.QueryRowContext(ctx,
		`SELECT id, origin, destination, label, depart_time_from, return_time_from FROM routes WHERE id = ?`, id).
		Scan(&r.ID, &r.Origin, &r.Destination, &r.Label, &r.DepartTimeFrom, &r.ReturnTimeFrom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query route %d: %w", id, err)
	}
	return &r, nil
}
