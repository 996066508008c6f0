// notifier/alert.go
package notifier

import (
	"fmt"
	"strings"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/utils"
)

// PriceAlert is raised when a window's best price moves against a known
// previous price.
type PriceAlert struct {
	Route    models.Route
	Window   models.ScanWindow
	OldPrice int
	NewPrice int
	Airline  string
	Legs     string
	// RouteMinimum is the cheapest price across all windows of the route
	// after the change, if known.
	RouteMinimum *models.RouteMinimum
}

func FormatPriceAlert(a PriceAlert) string {
	lines := []string{
		fmt.Sprintf("🚨 최저가 갱신! %s → %s", utils.AirportName(a.Route.Origin), a.Route.Label),
		fmt.Sprintf("📅 %s → %s", utils.ShortDateLabel(a.Window.Depart), utils.ShortDateLabel(a.Window.Return)),
		fmt.Sprintf("이전: %s → 현재: %s (%s)", utils.FormatWon(a.OldPrice), utils.FormatWon(a.NewPrice), signedPercent(a.OldPrice, a.NewPrice)),
		fmt.Sprintf("항공사: %s", a.Airline),
	}

	out, ret := SplitLegs(a.Legs)
	if ret != "" {
		lines = append(lines, "↗ 가는편: "+out, "↙ 오는편: "+ret)
	} else {
		lines = append(lines, out)
	}

	if m := a.RouteMinimum; m != nil {
		if m.DepartDate.IsZero() {
			lines = append(lines, fmt.Sprintf("📊 구간 전체 최저가: %s", utils.FormatWon(m.Price)))
		} else {
			lines = append(lines, fmt.Sprintf("📊 구간 전체 최저가: %s (%s 출발)", utils.FormatWon(m.Price), utils.ShortDateLabel(m.DepartDate)))
		}
	}
	return strings.Join(lines, "\n")
}

// SplitLegs splits "outbound / inbound" leg text. ret is empty when the text
// has no separator.
func SplitLegs(legs string) (out, ret string) {
	out, ret, found := strings.Cut(legs, " / ")
	if !found {
		return strings.TrimSpace(legs), ""
	}
	return strings.TrimSpace(out), strings.TrimSpace(ret)
}

func signedPercent(oldPrice, newPrice int) string {
	if oldPrice == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", float64(newPrice-oldPrice)/float64(oldPrice)*100)
}
