// services/ledger.go
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// Transition is the ledger state machine for one window. It returns the next
// record (nil = absent), whether anything must be written, and the event.
//
// A nil obs deletes the record once missThreshold consecutive misses are
// reached; below the threshold only the miss counter moves.
func Transition(key models.WindowKey, current *models.WeeklyLowestRecord, obs *models.Observation, now time.Time, missThreshold int) (*models.WeeklyLowestRecord, bool, models.LedgerEvent) {
	switch {
	case current == nil && obs == nil:
		return nil, false, models.LedgerEvent{Kind: models.EventNone}

	case current == nil:
		next := recordFromObservation(key, obs, now)
		return next, true, models.LedgerEvent{Kind: models.EventBaseline, NewPrice: next.MinPrice}

	case obs == nil:
		ev := models.LedgerEvent{OldPrice: current.MinPrice, HasOld: true}
		if current.MissCount+1 >= missThreshold {
			ev.Kind = models.EventInvalidated
			return nil, true, ev
		}
		next := *current
		next.MissCount++
		ev.Kind = models.EventMissed
		ev.NewPrice = current.MinPrice
		return &next, true, ev
	}

	price := obs.Best.Price
	ev := models.LedgerEvent{OldPrice: current.MinPrice, HasOld: true, NewPrice: price}
	switch {
	case price < current.MinPrice:
		ev.Kind = models.EventPriceDrop
	case price > current.MinPrice:
		ev.Kind = models.EventPriceRise
	default:
		next, changed := refreshEqualPrice(current, obs, now)
		ev.Kind = models.EventNone
		return next, changed, ev
	}

	next := recordFromObservation(key, obs, now)
	if next.Pax3Price == nil {
		next.Pax3Price = current.Pax3Price
	}
	return next, true, ev
}

func recordFromObservation(key models.WindowKey, obs *models.Observation, now time.Time) *models.WeeklyLowestRecord {
	rec := &models.WeeklyLowestRecord{
		RouteID:   key.RouteID,
		Window:    key.Window,
		MinPrice:  obs.Best.Price,
		Airline:   obs.Best.Airline,
		Legs:      obs.Best.Legs,
		Pax3Price: obs.Pax3Price,
		UpdatedAt: now,
	}
	if obs.Designated != nil {
		price, legs := obs.Designated.Price, obs.Designated.Legs
		rec.DesignatedPrice = &price
		rec.DesignatedLegs = &legs
	}
	return rec
}

// refreshEqualPrice keeps the record and only refreshes the designated
// carrier and party-of-three fields when the observation carries them.
func refreshEqualPrice(current *models.WeeklyLowestRecord, obs *models.Observation, now time.Time) (*models.WeeklyLowestRecord, bool) {
	next := *current
	refreshed := false

	if d := obs.Designated; d != nil {
		if !intEqual(next.DesignatedPrice, &d.Price) || next.DesignatedLegs == nil || *next.DesignatedLegs != d.Legs {
			price, legs := d.Price, d.Legs
			next.DesignatedPrice = &price
			next.DesignatedLegs = &legs
			refreshed = true
		}
	}
	if obs.Pax3Price != nil && !intEqual(next.Pax3Price, obs.Pax3Price) {
		p := *obs.Pax3Price
		next.Pax3Price = &p
		refreshed = true
	}
	if refreshed {
		next.UpdatedAt = now
	}

	changed := refreshed || next.MissCount != 0
	next.MissCount = 0
	if !changed {
		return current, false
	}
	return &next, true
}

func intEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// LedgerStore is the transactional window primitive the ledger needs.
type LedgerStore interface {
	UpdateWindow(ctx context.Context, key models.WindowKey, decide database.WindowUpdate) error
}

// Ledger applies observations to the persisted weekly lowest records.
type Ledger struct {
	store         LedgerStore
	clock         chrono.Clock
	missThreshold int
}

func NewLedger(store LedgerStore, clock chrono.Clock, missThreshold int) *Ledger {
	if missThreshold < 1 {
		missThreshold = 1
	}
	return &Ledger{store: store, clock: clock, missThreshold: missThreshold}
}

// Apply is the scan-cycle write path: a nil obs counts as a miss and
// eventually deletes the record.
func (l *Ledger) Apply(ctx context.Context, key models.WindowKey, obs *models.Observation) (models.LedgerEvent, error) {
	var event models.LedgerEvent
	err := l.store.UpdateWindow(ctx, key, func(current *models.WeeklyLowestRecord) (*models.WeeklyLowestRecord, bool, error) {
		next, changed, ev := Transition(key, current, obs, l.clock.Now(), l.missThreshold)
		event = ev
		return next, changed, nil
	})
	if err != nil {
		return models.LedgerEvent{}, err
	}

	if event.Kind != models.EventNone {
		slog.DebugContext(ctx, "Service: ledger transition",
			"key", key.String(), "event", event.Kind.String(),
			"old_price", event.OldPrice, "new_price", event.NewPrice)
	}
	return event, nil
}

// Reconcile is the verification write path. It never deletes: a nil obs or an
// unchanged price leaves the record as is. It returns the record as stored
// after the call.
func (l *Ledger) Reconcile(ctx context.Context, key models.WindowKey, obs *models.Observation) (*models.WeeklyLowestRecord, models.LedgerEvent, error) {
	var (
		event  models.LedgerEvent
		result *models.WeeklyLowestRecord
	)
	err := l.store.UpdateWindow(ctx, key, func(current *models.WeeklyLowestRecord) (*models.WeeklyLowestRecord, bool, error) {
		result = current
		if obs == nil || current == nil {
			event = models.LedgerEvent{Kind: models.EventNone}
			return nil, false, nil
		}
		if obs.Best.Price == current.MinPrice {
			event = models.LedgerEvent{Kind: models.EventNone, OldPrice: current.MinPrice, HasOld: true, NewPrice: current.MinPrice}
			return nil, false, nil
		}
		next, changed, ev := Transition(key, current, obs, l.clock.Now(), l.missThreshold)
		event = ev
		result = next
		return next, changed, nil
	})
	if err != nil {
		return nil, models.LedgerEvent{}, err
	}
	return result, event, nil
}
