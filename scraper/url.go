// scraper/url.go
package scraper

import (
	"strconv"
	"strings"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// BuildSearchURL fills the placeholders of a results-page template:
// {origin}, {destination}, {depart_date}, {return_date} (YYYYMMDD) and {adults}.
func BuildSearchURL(template string, route models.Route, window models.ScanWindow, adults int) string {
	if adults < 1 {
		adults = 1
	}
	return strings.NewReplacer(
		"{origin}", route.Origin,
		"{destination}", route.Destination,
		"{depart_date}", window.Depart.Compact(),
		"{return_date}", window.Return.Compact(),
		"{adults}", strconv.Itoa(adults),
	).Replace(template)
}
