// handlers/route_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/services"
)

const maxHistoryLimit = 1000

func (a *API) ListRoutesHandler(w http.ResponseWriter, r *http.Request) {
	routes, err := a.store.GetRoutes(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load routes: %v", err))
		return
	}
	if routes == nil {
		routes = []models.Route{}
	}
	respondWithJSON(w, http.StatusOK, routes)
}

func (a *API) RouteWeeksHandler(w http.ResponseWriter, r *http.Request) {
	route, ok := a.routeFromPath(w, r)
	if !ok {
		return
	}
	records, err := a.store.ListWeeklyLowest(r.Context(), route.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load weeks: %v", err))
		return
	}

	weeks := make([]models.WeekEntry, 0, len(records))
	for _, rec := range records {
		weeks = append(weeks, services.WeekEntryOf(rec))
	}
	respondWithJSON(w, http.StatusOK, models.RouteWeeks{Route: *route, Weeks: weeks})
}

// RouteHistoryHandler serves scan history, optionally narrowed to one window
// with ?depart=YYYY-MM-DD&return=YYYY-MM-DD, capped by ?limit.
func (a *API) RouteHistoryHandler(w http.ResponseWriter, r *http.Request) {
	route, ok := a.routeFromPath(w, r)
	if !ok {
		return
	}

	filter := database.ScanHistoryFilter{RouteID: route.ID, Limit: maxHistoryLimit}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxHistoryLimit {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid 'limit'. Use 1-%d.", maxHistoryLimit))
			return
		}
		filter.Limit = limit
	}
	if depart, ret := q.Get("depart"), q.Get("return"); depart != "" || ret != "" {
		d, err := models.ParseDate(depart)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'depart'. Use YYYY-MM-DD.")
			return
		}
		rd, err := models.ParseDate(ret)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'return'. Use YYYY-MM-DD.")
			return
		}
		filter.Window = &models.ScanWindow{Depart: d, Return: rd}
	}

	entries, err := a.store.ListScanHistory(r.Context(), filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load history: %v", err))
		return
	}
	if entries == nil {
		entries = []models.ScanHistoryEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (a *API) ExportHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := a.docs.BuildDocument(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to build export: %v", err))
		return
	}
	data, err := services.MarshalDocument(doc)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (a *API) routeFromPath(w http.ResponseWriter, r *http.Request) (*models.Route, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		respondWithError(w, http.StatusBadRequest, "Invalid route id")
		return nil, false
	}
	route, err := a.store.GetRoute(r.Context(), id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load route: %v", err))
		return nil, false
	}
	if route == nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Route %d not found", id))
		return nil, false
	}
	return route, true
}
