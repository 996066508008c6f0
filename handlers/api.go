// handlers/api.go
package handlers

import (
	"context"
	"net/http"

	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/services"
)

// Store is the read side of the database the API serves from.
type Store interface {
	Ping(ctx context.Context) error
	GetRoutes(ctx context.Context) ([]models.Route, error)
	GetRoute(ctx context.Context, id int) (*models.Route, error)
	ListWeeklyLowest(ctx context.Context, routeID int) ([]models.WeeklyLowestRecord, error)
	ListScanHistory(ctx context.Context, f database.ScanHistoryFilter) ([]models.ScanHistoryEntry, error)
}

type DocumentBuilder interface {
	BuildDocument(ctx context.Context) (*models.ExportDocument, error)
}

// Jobs triggers store-writing runs. Both methods return
// services.ErrRunInProgress instead of waiting.
type Jobs interface {
	TryScan(ctx context.Context) (*services.CycleReport, error)
	TryBrief(ctx context.Context) (string, []services.VerifyResult, error)
}

type API struct {
	store Store
	docs  DocumentBuilder
	jobs  Jobs
}

func NewAPI(store Store, docs DocumentBuilder, jobs Jobs) *API {
	return &API{store: store, docs: docs, jobs: jobs}
}

// Routes registers every endpoint on a new mux.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", a.HealthHandler)
	mux.HandleFunc("GET /api/routes", a.ListRoutesHandler)
	mux.HandleFunc("GET /api/routes/{id}/weeks", a.RouteWeeksHandler)
	mux.HandleFunc("GET /api/routes/{id}/history", a.RouteHistoryHandler)
	mux.HandleFunc("GET /api/export", a.ExportHandler)
	mux.HandleFunc("POST /api/admin/scan", a.ScanHandler)
	mux.HandleFunc("POST /api/admin/verify", a.VerifyHandler)
	return mux
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "database connection error")
		return
	}
	respondWithJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}
