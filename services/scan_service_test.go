package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

var (
	firstWindow  = win(time.October, 16, time.October, 18)
	secondWindow = win(time.October, 23, time.October, 25)
)

type scanFixture struct {
	store    *database.Store
	clock    *chrono.FixedClock
	renderer *fakeRenderer
	notifier *captureNotifier
	scanner  *Scanner
}

func newScanFixture(t *testing.T, opts ScannerOptions, pacer Pacer) *scanFixture {
	t.Helper()
	store := newTestStore(t)
	clock := newClock()
	renderer := newFakeRenderer()
	n := &captureNotifier{}
	if opts.URLTemplate == "" {
		opts.URLTemplate = testURLTemplate
	}
	if opts.DesignatedCarrier == "" {
		opts.DesignatedCarrier = "대한항공"
	}
	if opts.TripPatterns == nil {
		opts.TripPatterns = []models.TripPattern{fridayToSunday}
	}
	ledger := NewLedger(store, clock, 1)
	return &scanFixture{
		store:    store,
		clock:    clock,
		renderer: renderer,
		notifier: n,
		scanner:  NewScanner(renderer, ledger, store, n, pacer, clock, opts),
	}
}

func (f *scanFixture) record(t *testing.T, w models.ScanWindow) *models.WeeklyLowestRecord {
	t.Helper()
	rec, err := f.store.GetWeeklyLowest(context.Background(), models.WindowKey{RouteID: icnFuk.ID, Window: w})
	require.NoError(t, err)
	return rec
}

func TestScanCycleLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t, ScannerOptions{Weeks: 2, MaxRetries: 1}, NoPacer{})
	firstURL := urlFor(icnFuk, firstWindow, 1)
	secondURL := urlFor(icnFuk, secondWindow, 1)

	f.renderer.set(firstURL, page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))
	f.renderer.set(secondURL, renderFailure(secondURL))

	report, err := f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Windows)
	assert.Equal(t, 1, report.Observed)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.RenderFailures)
	assert.Equal(t, map[string]int{"baseline": 1}, report.Events)
	assert.Equal(t, 2, f.renderer.callCount(secondURL), "one retry after a render failure")
	assert.Empty(t, f.notifier.messages, "baselines are silent")

	rec := f.record(t, firstWindow)
	require.NotNil(t, rec)
	assert.Equal(t, 320000, rec.MinPrice)
	assert.Equal(t, "대한항공", rec.Airline)
	assert.Equal(t, koreanAirLegs, rec.Legs)
	require.NotNil(t, rec.DesignatedPrice)
	assert.Equal(t, 320000, *rec.DesignatedPrice)
	assert.Nil(t, f.record(t, secondWindow))

	// a cheaper carrier appears
	f.clock.Advance(time.Hour)
	f.renderer.set(firstURL, page(resultsPage(icnFuk,
		offerLine{airline: "대한항공", price: "320,000"},
		offerLine{airline: "제주항공", price: "298,000", outDep: "19:05"},
	)))

	report, err = f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Alerts)
	assert.Equal(t, 1, report.Events["price_drop"])

	rec = f.record(t, firstWindow)
	assert.Equal(t, 298000, rec.MinPrice)
	assert.Equal(t, "제주항공", rec.Airline)
	assert.Equal(t, 320000, *rec.DesignatedPrice)

	require.Len(t, f.notifier.messages, 1)
	msg := f.notifier.messages[0]
	assert.Contains(t, msg, "인천 → 후쿠오카")
	assert.Contains(t, msg, "이전: 320,000원 → 현재: 298,000원")
	assert.Contains(t, msg, "항공사: 제주항공")
	assert.Contains(t, msg, "📊 구간 전체 최저가: 298,000원 (10/16(금) 출발)")

	// the page renders but holds nothing: not retried, record removed
	f.clock.Advance(time.Hour)
	calls := f.renderer.callCount(firstURL)
	f.renderer.set(firstURL, page("항공권 검색 결과\n조건에 맞는 항공편이 없습니다"))

	report, err = f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.NoError(t, err)
	assert.Equal(t, calls+1, f.renderer.callCount(firstURL))
	assert.Equal(t, 1, report.Events["invalidated"])
	assert.Nil(t, f.record(t, firstWindow))
	assert.Len(t, f.notifier.messages, 1)

	history, err := f.store.ListScanHistory(ctx, database.ScanHistoryFilter{RouteID: icnFuk.ID})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 320000, history[0].Price)
	assert.Equal(t, 298000, history[1].Price)
}

func TestScanCycleRecoversAfterRetry(t *testing.T) {
	f := newScanFixture(t, ScannerOptions{Weeks: 1, MaxRetries: 2}, NoPacer{})
	url := urlFor(icnFuk, firstWindow, 1)
	f.renderer.set(url,
		renderFailure(url),
		page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})),
	)

	report, err := f.scanner.RunCycle(context.Background(), []models.Route{icnFuk})
	require.NoError(t, err)
	assert.Equal(t, 2, f.renderer.callCount(url))
	assert.Equal(t, 0, report.RenderFailures)
	assert.Equal(t, 1, report.Observed)
	assert.Equal(t, 320000, f.record(t, firstWindow).MinPrice)
}

func TestScanCyclePacesEveryRequest(t *testing.T) {
	pacer := &countingPacer{}
	f := newScanFixture(t, ScannerOptions{Weeks: 2, MaxRetries: 2}, pacer)
	first := urlFor(icnFuk, firstWindow, 1)
	second := urlFor(icnFuk, secondWindow, 1)
	f.renderer.set(first, renderFailure(first))
	f.renderer.set(second, page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))

	_, err := f.scanner.RunCycle(context.Background(), []models.Route{icnFuk})
	require.NoError(t, err)

	assert.Equal(t, 3, f.renderer.callCount(first))
	// two waits between attempts plus one after each window
	assert.Equal(t, 4, pacer.pauses)
}

func TestScanCycleRenderFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t, ScannerOptions{Weeks: 1}, NoPacer{})
	url := urlFor(icnFuk, firstWindow, 1)
	f.renderer.set(url, page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))
	_, err := f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.NoError(t, err)

	ledger := NewLedger(f.store, newClock(), 2)
	f.scanner.ledger = ledger
	f.renderer.set(url, renderFailure(url))

	report, err := f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Events["missed"])
	rec := f.record(t, firstWindow)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.MissCount)

	report, err = f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Events["invalidated"])
	assert.Nil(t, f.record(t, firstWindow))
}

func TestScanCycleProbesPartyOfThree(t *testing.T) {
	pacer := &countingPacer{}
	f := newScanFixture(t, ScannerOptions{Weeks: 1, Pax3Probe: true}, pacer)
	f.renderer.set(urlFor(icnFuk, firstWindow, 1), page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))
	f.renderer.set(urlFor(icnFuk, firstWindow, 3), page(resultsPage(icnFuk,
		offerLine{airline: "대한항공", price: "960,000"},
		offerLine{airline: "제주항공", price: "894,000", outDep: "19:05"},
	)))

	_, err := f.scanner.RunCycle(context.Background(), []models.Route{icnFuk})
	require.NoError(t, err)

	rec := f.record(t, firstWindow)
	require.NotNil(t, rec.Pax3Price)
	assert.Equal(t, 894000, *rec.Pax3Price)
	assert.Equal(t, 320000, rec.MinPrice)
	assert.Equal(t, 2, pacer.pauses)
}

func TestScanCycleFailedProbeStillRecords(t *testing.T) {
	f := newScanFixture(t, ScannerOptions{Weeks: 1, Pax3Probe: true}, NoPacer{})
	f.renderer.set(urlFor(icnFuk, firstWindow, 1), page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))

	_, err := f.scanner.RunCycle(context.Background(), []models.Route{icnFuk})
	require.NoError(t, err)

	rec := f.record(t, firstWindow)
	assert.Equal(t, 320000, rec.MinPrice)
	assert.Nil(t, rec.Pax3Price)
}

func TestScanCycleDeduplicatesHistoryWithinMinute(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t, ScannerOptions{Weeks: 1}, NoPacer{})
	f.renderer.set(urlFor(icnFuk, firstWindow, 1), page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))

	for range 2 {
		_, err := f.scanner.RunCycle(ctx, []models.Route{icnFuk})
		require.NoError(t, err)
	}

	history, err := f.store.ListScanHistory(ctx, database.ScanHistoryFilter{RouteID: icnFuk.ID})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

type cancellingPacer struct{ cancel context.CancelFunc }

func (p cancellingPacer) Pause(ctx context.Context) error {
	p.cancel()
	return ctx.Err()
}

func TestScanCycleCancelledKeepsCommittedWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newScanFixture(t, ScannerOptions{Weeks: 2}, cancellingPacer{cancel: cancel})
	f.renderer.set(urlFor(icnFuk, firstWindow, 1), page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))

	report, err := f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Windows)
	assert.Equal(t, 0, f.renderer.callCount(urlFor(icnFuk, secondWindow, 1)))
	assert.NotNil(t, f.record(t, firstWindow))
}

func TestScanCycleCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newScanFixture(t, ScannerOptions{Weeks: 1}, NoPacer{})

	_, err := f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.renderer.calls)
}

type failingScanStore struct {
	ScanStore
	err error
}

func (s failingScanStore) InsertScan(context.Context, models.ScanHistoryEntry) (bool, error) {
	return false, s.err
}

func TestScanCycleAbortsOnStoreError(t *testing.T) {
	f := newScanFixture(t, ScannerOptions{Weeks: 2}, NoPacer{})
	boom := errors.New("disk full")
	f.scanner.store = failingScanStore{ScanStore: f.store, err: boom}
	f.renderer.set(urlFor(icnFuk, firstWindow, 1), page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))

	_, err := f.scanner.RunCycle(context.Background(), []models.Route{icnFuk})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, f.renderer.callCount(urlFor(icnFuk, secondWindow, 1)))
	assert.Nil(t, f.record(t, firstWindow))
}

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, string) error { return errors.New("webhook down") }

func TestScanCycleNotifierFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t, ScannerOptions{Weeks: 1}, NoPacer{})
	f.scanner.notifier = failingNotifier{}
	url := urlFor(icnFuk, firstWindow, 1)

	f.renderer.set(url, page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "320,000"})))
	_, err := f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	f.renderer.set(url, page(resultsPage(icnFuk, offerLine{airline: "대한항공", price: "310,000"})))
	report, err := f.scanner.RunCycle(ctx, []models.Route{icnFuk})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Alerts)
	assert.Equal(t, 310000, f.record(t, firstWindow).MinPrice)
}

func TestScanCycleRejectsEarlyDepartures(t *testing.T) {
	f := newScanFixture(t, ScannerOptions{Weeks: 1}, NoPacer{})
	f.renderer.set(urlFor(icnFuk, firstWindow, 1), page(resultsPage(icnFuk,
		offerLine{airline: "제주항공", price: "180,000", outDep: "07:00"},
		offerLine{airline: "대한항공", price: "320,000"},
	)))

	_, err := f.scanner.RunCycle(context.Background(), []models.Route{icnFuk})
	require.NoError(t, err)
	assert.Equal(t, 320000, f.record(t, firstWindow).MinPrice)
}
