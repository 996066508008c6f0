// models/export.go
package models

// ExportDocument is the JSON document consumed by the dashboard.
type ExportDocument struct {
	UpdatedAt string        `json:"updated_at"`
	Routes    []ExportRoute `json:"routes"`
}

type ExportRoute struct {
	Origin         string                          `json:"origin"`
	Destination    string                          `json:"destination"`
	Label          string                          `json:"label"`
	Weeks          []WeekEntry                     `json:"weeks"`
	OverallHistory []HistoryEntry                  `json:"overall_history"`
	WeeklyHistory  map[string][]WeeklyHistoryEntry `json:"weekly_history"`
}

// WeekEntry keeps the dashboard's field names, including the kal_* pair for
// the designated carrier.
type WeekEntry struct {
	DepartDate      string  `json:"depart_date"`
	ReturnDate      string  `json:"return_date"`
	MinPrice        int     `json:"min_price"`
	Airline         string  `json:"airline"`
	FlightInfo      string  `json:"flight_info"`
	DesignatedPrice *int    `json:"kal_price"`
	DesignatedInfo  *string `json:"kal_flight_info"`
	UpdatedAt       string  `json:"updated_at"`
}

type HistoryEntry struct {
	SnapshotAt string `json:"snapshot_at"`
	Price      int    `json:"price"`
	Airline    string `json:"airline"`
	DepartDate string `json:"depart_date"`
}

type WeeklyHistoryEntry struct {
	SnapshotAt string `json:"snapshot_at"`
	Price      int    `json:"price"`
	Airline    string `json:"airline"`
}
