// models/route.go
package models

import "fmt"

// Route is one tracked origin/destination pair. ID is stable across restarts
// and is the foreign key of every ledger, history and snapshot row.
type Route struct {
	ID          int    `json:"id" db:"id"`
	Origin      string `json:"origin" db:"origin"`
	Destination string `json:"destination" db:"destination"`
	Label       string `json:"label" db:"label"`

	// Earliest acceptable departure hour of the outbound leg (from Origin)
	// and of the inbound leg (from Destination).
	DepartTimeFrom int `json:"depart_time_from" db:"depart_time_from"`
	ReturnTimeFrom int `json:"return_time_from" db:"return_time_from"`
}

func (r Route) String() string {
	return fmt.Sprintf("%s→%s", r.Origin, r.Destination)
}

// ScanWindow is a (departure date, return date) pair.
type ScanWindow struct {
	Depart Date `json:"depart_date"`
	Return Date `json:"return_date"`
}

func (w ScanWindow) String() string {
	return fmt.Sprintf("%s ~ %s", w.Depart, w.Return)
}

// WindowKey identifies exactly one WeeklyLowestRecord.
type WindowKey struct {
	RouteID int
	Window  ScanWindow
}

func (k WindowKey) String() string {
	return fmt.Sprintf("route %d %s", k.RouteID, k.Window)
}

// TripPattern is a recurring weekday pair, e.g. Friday out, Sunday back.
type TripPattern struct {
	Name          string  `yaml:"name"`
	DepartWeekday Weekday `yaml:"depart_weekday"`
	ReturnWeekday Weekday `yaml:"return_weekday"`
}

// TripLength is the number of nights between departure and return,
// wrapping across the week boundary.
func (p TripPattern) TripLength() int {
	return ((int(p.ReturnWeekday)-int(p.DepartWeekday))%7 + 7) % 7
}
