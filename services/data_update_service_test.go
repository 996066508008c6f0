package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

func newTestUpdater(t *testing.T) (*Updater, *fakeRenderer, string) {
	t.Helper()
	store := newTestStore(t)
	clock := newClock()
	renderer := newFakeRenderer()
	ledger := NewLedger(store, clock, 1)
	n := &captureNotifier{}

	scanner := NewScanner(renderer, ledger, store, n, NoPacer{}, clock, ScannerOptions{
		URLTemplate:       testURLTemplate,
		DesignatedCarrier: "대한항공",
		TripPatterns:      []models.TripPattern{fridayToSunday},
		Weeks:             1,
	})
	verifier := NewVerifier(renderer, ledger, store, NoPacer{}, VerifierOptions{URLTemplate: testURLTemplate, DesignatedCarrier: "대한항공"})
	briefer := NewBriefer(verifier, n, clock, BriefingOptions{Hours: []int{9}, URLTemplate: testURLTemplate, DesignatedCarrier: "대한항공"})

	exportPath := filepath.Join(t.TempDir(), "data", "flights.json")
	u := NewUpdater(store, scanner, briefer, NewSnapshotService(store, clock), NewExporter(store, clock, 0),
		UpdaterOptions{ExportPath: exportPath})
	return u, renderer, exportPath
}

func TestUpdaterScanPublishes(t *testing.T) {
	u, renderer, exportPath := newTestUpdater(t)
	renderer.set(urlFor(icnFuk, firstWindow, 1), page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))

	report, err := u.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Windows, "one window for each stored route")
	assert.Equal(t, 1, report.Observed)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"min_price": 320000`)
}

func TestUpdaterBrief(t *testing.T) {
	u, renderer, _ := newTestUpdater(t)
	url := urlFor(icnFuk, firstWindow, 1)
	renderer.set(url, page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))
	_, err := u.Scan(context.Background())
	require.NoError(t, err)

	msg, results, err := u.Brief(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, OutcomeConfirmed, results[0].Outcome)
	assert.Equal(t, OutcomeNoData, results[1].Outcome)
	assert.Contains(t, msg, "💰 왕복 320,000원")
}

func TestUpdaterTryRejectsConcurrentRun(t *testing.T) {
	u, renderer, _ := newTestUpdater(t)

	u.mu.Lock()
	_, err := u.TryScan(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, _, err = u.TryBrief(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	u.mu.Unlock()
	assert.Empty(t, renderer.calls)

	_, err = u.TryScan(context.Background())
	assert.NoError(t, err)
}
