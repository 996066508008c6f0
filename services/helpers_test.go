package services

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

const testURLTemplate = "https://flights.test/{origin}-{destination}-{depart_date}/{destination}-{origin}-{return_date}?adult={adults}"

var (
	kst = time.FixedZone("KST", 9*60*60)

	icnFuk = models.Route{ID: 1, Origin: "ICN", Destination: "FUK", Label: "후쿠오카", DepartTimeFrom: 18, ReturnTimeFrom: 16}
	icnNrt = models.Route{ID: 2, Origin: "ICN", Destination: "NRT", Label: "도쿄 나리타", DepartTimeFrom: 18, ReturnTimeFrom: 16}

	fridayToSunday = models.TripPattern{Name: "fri-sun", DepartWeekday: models.Friday, ReturnWeekday: models.Sunday}
)

// wednesday 2026-10-14 09:30 KST
func testNow() time.Time { return time.Date(2026, time.October, 14, 9, 30, 0, 0, kst) }

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	s, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tracker.db"), kst)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SyncRoutes(context.Background(), []models.Route{icnFuk, icnNrt}))
	return s
}

func win(m time.Month, depart int, rm time.Month, ret int) models.ScanWindow {
	return models.ScanWindow{Depart: models.NewDate(2026, m, depart), Return: models.NewDate(2026, rm, ret)}
}

func urlFor(r models.Route, w models.ScanWindow, adults int) string {
	return strings.NewReplacer(
		"{origin}", r.Origin, "{destination}", r.Destination,
		"{depart_date}", w.Depart.Compact(), "{return_date}", w.Return.Compact(),
		"{adults}", strconv.Itoa(adults),
	).Replace(testURLTemplate)
}

type offerLine struct {
	airline string
	price   string
	outDep  string
	retDep  string
}

// resultsPage renders offers for r the way the results page text reads.
func resultsPage(r models.Route, offers ...offerLine) string {
	lines := []string{"항공권 검색 결과", "왕복 · 성인 1명"}
	for _, o := range offers {
		outDep, retDep := o.outDep, o.retDep
		if outDep == "" {
			outDep = "18:30"
		}
		if retDep == "" {
			retDep = "16:45"
		}
		lines = append(lines,
			o.airline,
			outDep+r.Origin,
			"21:10"+r.Destination,
			"직항, 일반석",
			retDep+r.Destination,
			"18:20"+r.Origin,
			"직항, 일반석",
			"왕복 "+o.price+"원",
		)
	}
	return strings.Join(lines, "\n")
}

type renderResult struct {
	text string
	err  error
}

// fakeRenderer replays queued results per URL; the last result repeats.
type fakeRenderer struct {
	mu    sync.Mutex
	pages map[string][]renderResult
	calls []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{pages: make(map[string][]renderResult)}
}

func (f *fakeRenderer) set(url string, results ...renderResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = results
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	queue := f.pages[url]
	if len(queue) == 0 {
		return "", &models.RenderError{URL: url, Reason: "no page"}
	}
	res := queue[0]
	if len(queue) > 1 {
		f.pages[url] = queue[1:]
	}
	return res.text, res.err
}

func (f *fakeRenderer) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureNotifier) Send(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

type countingPacer struct{ pauses int }

func (p *countingPacer) Pause(ctx context.Context) error {
	p.pauses++
	return ctx.Err()
}

func page(text string) renderResult { return renderResult{text: text} }

func renderFailure(url string) renderResult {
	return renderResult{err: &models.RenderError{URL: url, Reason: "timeout"}}
}

func newClock() *chrono.FixedClock { return chrono.NewFixedClock(testNow()) }

func intp(v int) *int { return &v }
