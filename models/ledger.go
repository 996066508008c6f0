// models/ledger.go
package models

import (
	"fmt"
	"time"
)

// WeeklyLowestRecord is the "best known price" of one route/window.
// At most one record exists per WindowKey.
type WeeklyLowestRecord struct {
	RouteID  int        `json:"route_id" db:"route_id"`
	Window   ScanWindow `json:"window" db:"-"`
	MinPrice int        `json:"min_price" db:"min_price"`
	Airline  string     `json:"airline" db:"airline"`
	Legs     string     `json:"flight_info" db:"flight_info"`

	// Designated-carrier fields are tracked independently of price rank.
	DesignatedPrice *int    `json:"kal_price" db:"kal_price"`
	DesignatedLegs  *string `json:"kal_flight_info" db:"kal_flight_info"`

	Pax3Price *int `json:"pax3_price" db:"pax3_price"`

	// MissCount counts consecutive scan cycles that found no valid offer.
	MissCount int       `json:"miss_count" db:"miss_count"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (r WeeklyLowestRecord) Key() WindowKey {
	return WindowKey{RouteID: r.RouteID, Window: r.Window}
}

// EventKind is the change emitted by a ledger transition.
type EventKind int

const (
	EventNone EventKind = iota
	// EventBaseline is the first price of a window; never notified.
	EventBaseline
	EventPriceDrop
	// EventPriceRise means the previous cheapest combination disappeared and
	// the next-best price was adopted.
	EventPriceRise
	// EventInvalidated is the destructive delete of the scan-cycle path.
	EventInvalidated
	// EventMissed is a no-offer cycle that did not yet reach the miss threshold.
	EventMissed
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventBaseline:
		return "baseline"
	case EventPriceDrop:
		return "price_drop"
	case EventPriceRise:
		return "price_rise"
	case EventInvalidated:
		return "invalidated"
	case EventMissed:
		return "missed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// LedgerEvent describes one transition. OldPrice is meaningful only when
// HasOld is set.
type LedgerEvent struct {
	Kind     EventKind
	OldPrice int
	HasOld   bool
	NewPrice int
}

// IsPriceChange reports whether the event should raise a price alert.
func (e LedgerEvent) IsPriceChange() bool {
	return (e.Kind == EventPriceDrop || e.Kind == EventPriceRise) && e.HasOld
}

// ScanHistoryEntry is an append-only audit row of one observation.
type ScanHistoryEntry struct {
	ID         int64     `json:"id" csv:"id"`
	RouteID    int       `json:"route_id" csv:"route_id"`
	DepartDate Date      `json:"depart_date" csv:"depart_date"`
	ReturnDate Date      `json:"return_date" csv:"return_date"`
	Price      int       `json:"price" csv:"price"`
	Airline    string    `json:"airline" csv:"airline"`
	Legs       string    `json:"flight_info" csv:"flight_info"`
	ScannedAt  time.Time `json:"scanned_at" csv:"scanned_at"`
}

// PriceSnapshot captures a route's overall minimum at a point in time.
type PriceSnapshot struct {
	RouteID         int
	SnapshotAt      time.Time
	OverallMinPrice int
	Airline         string
	DepartDate      Date
	Legs            string
}

// WeeklySnapshot captures one window's record at a point in time.
type WeeklySnapshot struct {
	RouteID    int
	Window     ScanWindow
	SnapshotAt time.Time
	MinPrice   int
	Airline    string
	Legs       string
}

// RouteMinimum is the cheapest record across all windows of a route.
type RouteMinimum struct {
	Price      int
	DepartDate Date
}
