// models/api_models.go
package models

// RouteWeeks is the response of GET /api/routes/{id}/weeks.
type RouteWeeks struct {
	Route Route       `json:"route"`
	Weeks []WeekEntry `json:"weeks"`
}

// HealthResponse is the response of GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
