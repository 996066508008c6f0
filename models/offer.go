// models/offer.go
package models

// FlightOffer is a single nonstop, single-carrier round trip found in a
// results page. It only lives for the duration of one parse.
type FlightOffer struct {
	Airline string `json:"airline"`
	Price   int    `json:"price"`
	// Legs renders both legs, e.g. "18:30 ICN→FUK 21:10 / 16:45 FUK→ICN 18:20".
	Legs string `json:"flight_info"`
}

// Observation is the outcome of one successful parse of a window.
// A nil *Observation means no valid offer was seen this cycle.
type Observation struct {
	Best FlightOffer
	// Designated is the first offer by the designated carrier, if any.
	Designated *FlightOffer
	// Pax3Price is the optional party-of-three round-trip total.
	Pax3Price *int
}
