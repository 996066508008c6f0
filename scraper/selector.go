// scraper/selector.go
package scraper

import (
	"strings"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// SelectOffers picks the cheapest offer (first one wins on ties) and the
// first offer whose airline contains designatedMarker. Both are nil when
// offers is empty; designated is nil when no offer matches or the marker is
// empty.
func SelectOffers(offers []models.FlightOffer, designatedMarker string) (best, designated *models.FlightOffer) {
	for i := range offers {
		o := &offers[i]
		if best == nil || o.Price < best.Price {
			best = o
		}
		if designated == nil && designatedMarker != "" && strings.Contains(o.Airline, designatedMarker) {
			designated = o
		}
	}
	return best, designated
}

// Observe turns a parse result into a ledger observation. It returns nil
// (no valid offer) for an empty slice.
func Observe(offers []models.FlightOffer, designatedMarker string) *models.Observation {
	best, designated := SelectOffers(offers, designatedMarker)
	if best == nil {
		return nil
	}
	obs := &models.Observation{Best: *best}
	if designated != nil {
		d := *designated
		obs.Designated = &d
	}
	return obs
}

// MinPrice returns the lowest price among offers, or false when there are none.
func MinPrice(offers []models.FlightOffer) (int, bool) {
	best, _ := SelectOffers(offers, "")
	if best == nil {
		return 0, false
	}
	return best.Price, true
}
