package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/services"
)

var kst = time.FixedZone("KST", 9*60*60)

var fukWindow = models.ScanWindow{
	Depart: models.NewDate(2026, time.October, 16),
	Return: models.NewDate(2026, time.October, 18),
}

type fakeJobs struct {
	scanErr  error
	briefErr error
	scans    int
	briefs   int
	// lastCtx is the context the most recent job ran with.
	lastCtx context.Context
}

func (f *fakeJobs) TryScan(ctx context.Context) (*services.CycleReport, error) {
	f.scans++
	f.lastCtx = ctx
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return &services.CycleReport{RunID: "run-1", Windows: 16, Observed: 15, Events: map[string]int{"price_drop": 1}}, nil
}

func (f *fakeJobs) TryBrief(ctx context.Context) (string, []services.VerifyResult, error) {
	f.briefs++
	f.lastCtx = ctx
	if f.briefErr != nil {
		return "", nil, f.briefErr
	}
	return "✈️ 항공권 가격 브리핑", []services.VerifyResult{{Outcome: services.OutcomeConfirmed}}, nil
}

func newTestAPI(t *testing.T) (*httptest.Server, *database.Store, *fakeJobs) {
	t.Helper()
	ctx := context.Background()
	store, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"), kst)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SyncRoutes(ctx, []models.Route{
		{ID: 1, Origin: "ICN", Destination: "FUK", Label: "후쿠오카", DepartTimeFrom: 18, ReturnTimeFrom: 16},
		{ID: 2, Origin: "ICN", Destination: "NRT", Label: "도쿄 나리타", DepartTimeFrom: 18, ReturnTimeFrom: 16},
	}))

	clock := chrono.NewFixedClock(time.Date(2026, time.October, 14, 9, 30, 0, 0, kst))
	ledger := services.NewLedger(store, clock, 1)
	_, err = ledger.Apply(ctx, models.WindowKey{RouteID: 1, Window: fukWindow}, &models.Observation{
		Best: models.FlightOffer{Airline: "대한항공", Price: 320000, Legs: "18:30 ICN→FUK 21:10 / 16:45 FUK→ICN 18:20"},
	})
	require.NoError(t, err)
	_, err = store.InsertScan(ctx, models.ScanHistoryEntry{
		RouteID: 1, DepartDate: fukWindow.Depart, ReturnDate: fukWindow.Return,
		Price: 320000, Airline: "대한항공", Legs: "18:30 ICN→FUK 21:10 / 16:45 FUK→ICN 18:20",
		ScannedAt: clock.Now(),
	})
	require.NoError(t, err)

	jobs := &fakeJobs{}
	api := NewAPI(store, services.NewExporter(store, clock, 0), jobs)
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return srv, store, jobs
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, store, _ := newTestAPI(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/health", &body))
	assert.Equal(t, "ok", body["status"])

	require.NoError(t, store.Close())
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/health", &body))
	assert.Equal(t, "database connection error", body["error"])
}

func TestListRoutes(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	var routes []models.Route
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/routes", &routes))
	require.Len(t, routes, 2)
	assert.Equal(t, "FUK", routes[0].Destination)
	assert.Equal(t, "도쿄 나리타", routes[1].Label)
}

func TestRouteWeeks(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	var body models.RouteWeeks
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/routes/1/weeks", &body))
	assert.Equal(t, 1, body.Route.ID)
	require.Len(t, body.Weeks, 1)
	assert.Equal(t, "2026-10-16", body.Weeks[0].DepartDate)
	assert.Equal(t, 320000, body.Weeks[0].MinPrice)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/routes/2/weeks", &body))
	assert.NotNil(t, body.Weeks)
	assert.Empty(t, body.Weeks)
}

func TestRouteWeeksErrors(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/routes/9/weeks", &body))
	assert.Equal(t, "Route 9 not found", body["error"])
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/routes/abc/weeks", &body))
}

func TestRouteHistory(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	var entries []models.ScanHistoryEntry
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/routes/1/history?depart=2026-10-16&return=2026-10-18", &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 320000, entries[0].Price)
	assert.Equal(t, fukWindow.Depart, entries[0].DepartDate)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/routes/1/history?depart=2026-10-23&return=2026-10-25", &entries))
	assert.Empty(t, entries)

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/routes/1/history?limit=0", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/routes/1/history?depart=2026-10-16", &body))
}

func TestExport(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	var doc models.ExportDocument
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/export", &doc))
	assert.Equal(t, "2026-10-14T09:30:00+09:00", doc.UpdatedAt)
	require.Len(t, doc.Routes, 2)
	assert.Len(t, doc.Routes[0].Weeks, 1)
}

func TestAdminScan(t *testing.T) {
	srv, _, jobs := newTestAPI(t)

	resp, err := http.Post(srv.URL+"/api/admin/scan", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report services.CycleReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 1, jobs.scans)
}

func TestAdminEndpointsReportConflicts(t *testing.T) {
	srv, _, jobs := newTestAPI(t)
	jobs.scanErr = services.ErrRunInProgress
	jobs.briefErr = services.ErrRunInProgress

	for _, path := range []string{"/api/admin/scan", "/api/admin/verify"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode, path)
	}
}

func TestAdminVerify(t *testing.T) {
	srv, _, jobs := newTestAPI(t)

	resp, err := http.Post(srv.URL+"/api/admin/verify", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
		Results []struct {
			Outcome string `json:"outcome"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "✈️ 항공권 가격 브리핑", body.Message)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "confirmed", body.Results[0].Outcome)
	assert.Equal(t, 1, jobs.briefs)

	jobs.briefErr = errors.New("render service down")
	resp2, err := http.Post(srv.URL+"/api/admin/verify", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp2.StatusCode)
}

func TestAdminRejectsGet(t *testing.T) {
	srv, _, jobs := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/api/admin/scan")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Zero(t, jobs.scans)
}

func TestAdminJobsOutliveTheRequest(t *testing.T) {
	jobs := &fakeJobs{}
	api := NewAPI(nil, nil, jobs)

	for _, tc := range []struct {
		path    string
		handler http.HandlerFunc
	}{
		{"/api/admin/scan", api.ScanHandler},
		{"/api/admin/verify", api.VerifyHandler},
	} {
		t.Run(tc.path, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			req := httptest.NewRequest(http.MethodPost, tc.path, nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			tc.handler(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.NotNil(t, jobs.lastCtx)
			require.NoError(t, jobs.lastCtx.Err())
		})
	}
}
