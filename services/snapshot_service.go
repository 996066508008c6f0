// services/snapshot_service.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

type SnapshotStore interface {
	ListAllWeeklyLowest(ctx context.Context) ([]models.WeeklyLowestRecord, error)
	InsertPriceSnapshot(ctx context.Context, p models.PriceSnapshot) error
	InsertWeeklySnapshot(ctx context.Context, w models.WeeklySnapshot) (bool, error)
}

type SnapshotReport struct {
	Routes int `json:"routes"`
	Weekly int `json:"weekly"`
}

// SnapshotService copies the current ledger into the price history tables
// the dashboard charts are drawn from.
type SnapshotService struct {
	store SnapshotStore
	clock chrono.Clock
}

func NewSnapshotService(store SnapshotStore, clock chrono.Clock) *SnapshotService {
	return &SnapshotService{store: store, clock: clock}
}

// TakeSnapshots writes one overall-minimum row per route that has records and
// one row per record, skipping weekly rows already captured this hour at the
// same price.
func (s *SnapshotService) TakeSnapshots(ctx context.Context) (SnapshotReport, error) {
	var report SnapshotReport
	records, err := s.store.ListAllWeeklyLowest(ctx)
	if err != nil {
		return report, fmt.Errorf("load weekly lowest: %w", err)
	}
	now := s.clock.Now()

	byRoute := make(map[int][]models.WeeklyLowestRecord)
	var order []int
	for _, rec := range records {
		if _, ok := byRoute[rec.RouteID]; !ok {
			order = append(order, rec.RouteID)
		}
		byRoute[rec.RouteID] = append(byRoute[rec.RouteID], rec)
	}

	for _, routeID := range order {
		recs := byRoute[routeID]
		best := cheapest(recs)
		err := s.store.InsertPriceSnapshot(ctx, models.PriceSnapshot{
			RouteID:         routeID,
			SnapshotAt:      now,
			OverallMinPrice: best.MinPrice,
			Airline:         best.Airline,
			DepartDate:      best.Window.Depart,
			Legs:            best.Legs,
		})
		if err != nil {
			return report, err
		}
		report.Routes++

		for _, rec := range recs {
			inserted, err := s.store.InsertWeeklySnapshot(ctx, models.WeeklySnapshot{
				RouteID:    routeID,
				Window:     rec.Window,
				SnapshotAt: now,
				MinPrice:   rec.MinPrice,
				Airline:    rec.Airline,
				Legs:       rec.Legs,
			})
			if err != nil {
				return report, err
			}
			if inserted {
				report.Weekly++
			}
		}
	}

	slog.InfoContext(ctx, "Service: snapshots taken", "routes", report.Routes, "weekly", report.Weekly)
	return report, nil
}

// cheapest returns the lowest-priced record; the earliest window wins ties
// because records arrive ordered by departure date.
func cheapest(recs []models.WeeklyLowestRecord) models.WeeklyLowestRecord {
	best := recs[0]
	for _, r := range recs[1:] {
		if r.MinPrice < best.MinPrice {
			best = r
		}
	}
	return best
}
