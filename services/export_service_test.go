package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

func seedExport(t *testing.T) (*database.Store, *Exporter) {
	t.Helper()
	ctx := context.Background()
	store := newTestStore(t)
	clock := newClock()
	ledger := NewLedger(store, clock, 1)
	snapshots := NewSnapshotService(store, clock)
	key := models.WindowKey{RouteID: icnFuk.ID, Window: firstWindow}

	_, err := ledger.Apply(ctx, key, withDesignated(obsOf("대한항공", 320000, koreanAirLegs), 320000, koreanAirLegs))
	require.NoError(t, err)
	_, err = snapshots.TakeSnapshots(ctx)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = ledger.Apply(ctx, key, obsOf("제주항공", 298000, jejuAirLegs))
	require.NoError(t, err)
	_, err = snapshots.TakeSnapshots(ctx)
	require.NoError(t, err)

	return store, NewExporter(store, clock, 0)
}

func TestBuildDocument(t *testing.T) {
	_, exporter := seedExport(t)

	doc, err := exporter.BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-10-14T11:30:00+09:00", doc.UpdatedAt)
	require.Len(t, doc.Routes, 2)

	fuk := doc.Routes[0]
	assert.Equal(t, "ICN", fuk.Origin)
	assert.Equal(t, "FUK", fuk.Destination)
	assert.Equal(t, "후쿠오카", fuk.Label)
	require.Len(t, fuk.Weeks, 1)
	assert.Equal(t, models.WeekEntry{
		DepartDate: "2026-10-16",
		ReturnDate: "2026-10-18",
		MinPrice:   298000,
		Airline:    "제주항공",
		FlightInfo: jejuAirLegs,
		UpdatedAt:  "2026-10-14T11:30:00+09:00",
	}, fuk.Weeks[0])

	require.Len(t, fuk.OverallHistory, 2)
	assert.Equal(t, 320000, fuk.OverallHistory[0].Price, "history is oldest first")
	assert.Equal(t, 298000, fuk.OverallHistory[1].Price)
	assert.Equal(t, "2026-10-16", fuk.OverallHistory[1].DepartDate)

	weekly := fuk.WeeklyHistory["2026-10-16"]
	require.Len(t, weekly, 2)
	assert.Equal(t, "2026-10-14T09:30:00+09:00", weekly[0].SnapshotAt)
	assert.Equal(t, "제주항공", weekly[1].Airline)

	nrt := doc.Routes[1]
	assert.Empty(t, nrt.Weeks)
	assert.NotNil(t, nrt.Weeks)
	assert.NotNil(t, nrt.OverallHistory)
}

func TestMarshalDocumentShape(t *testing.T) {
	_, exporter := seedExport(t)
	doc, err := exporter.BuildDocument(context.Background())
	require.NoError(t, err)

	data, err := MarshalDocument(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kal_price": null`)
	assert.Contains(t, string(data), "ICN→FUK", "arrows are not escaped")

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	routes := generic["routes"].([]any)
	nrt := routes[1].(map[string]any)
	assert.Equal(t, []any{}, nrt["weeks"])
	assert.Equal(t, []any{}, nrt["overall_history"])
	assert.Equal(t, map[string]any{}, nrt["weekly_history"])
}

func TestWriteJSONReplacesFile(t *testing.T) {
	_, exporter := seedExport(t)
	path := filepath.Join(t.TempDir(), "public", "data.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	doc, err := exporter.WriteJSON(context.Background(), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded models.ExportDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc.UpdatedAt, decoded.UpdatedAt)
	assert.Len(t, decoded.Routes, 2)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

type brokenHistoryStore struct {
	ExportStore
}

func (brokenHistoryStore) RecentPriceSnapshots(context.Context, int, int) ([]models.PriceSnapshot, error) {
	return nil, errors.New("price_history is locked")
}

func TestBuildDocumentToleratesHistoryFailure(t *testing.T) {
	store, _ := seedExport(t)
	exporter := NewExporter(brokenHistoryStore{ExportStore: store}, newClock(), 10)

	doc, err := exporter.BuildDocument(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Routes[0].OverallHistory)
	assert.Len(t, doc.Routes[0].Weeks, 1)
	assert.Len(t, doc.Routes[0].WeeklyHistory["2026-10-16"], 2)
}

func TestWriteHistoryCSV(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for i, price := range []int{320000, 298000} {
		_, err := store.InsertScan(ctx, models.ScanHistoryEntry{
			RouteID:    icnFuk.ID,
			DepartDate: firstWindow.Depart,
			ReturnDate: firstWindow.Return,
			Price:      price,
			Airline:    "대한항공",
			Legs:       koreanAirLegs,
			ScannedAt:  testNow().Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	exporter := NewExporter(store, newClock(), 0)

	var buf bytes.Buffer
	n, err := exporter.WriteHistoryCSV(ctx, &buf, database.ScanHistoryFilter{RouteID: icnFuk.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("id,route_id,depart_date,return_date,price,airline,flight_info,scanned_at\n")))

	var rows []models.ScanHistoryEntry
	require.NoError(t, csvutil.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 320000, rows[0].Price)
	assert.Equal(t, firstWindow.Depart, rows[0].DepartDate)
	assert.True(t, rows[1].ScannedAt.Equal(testNow().Add(time.Hour)))
}

func TestWriteHistoryCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewExporter(newTestStore(t), newClock(), 0).WriteHistoryCSV(context.Background(), &buf, database.ScanHistoryFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "id,route_id,depart_date,return_date,price,airline,flight_info,scanned_at\n", buf.String())
}
