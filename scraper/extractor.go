// scraper/extractor.go
package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// Look-around bounds of the line scanner.
const (
	inboundSearchWindow = 15
	priceSearchWindow   = 15
	airlineLookBack     = 5

	minAirlineLen = 2
	maxAirlineLen = 30
)

const (
	nonstopIndicator    = "직항"
	connectingIndicator = "경유"
	discountLabel       = "할인"

	// UnknownAirline is used when no label precedes the outbound marker.
	UnknownAirline = "기타"
)

var metaKeywords = []string{"이벤트혜택", "공동운항", "동일가", "특가확인", "알림받기"}

var (
	roundTripPriceRegex = regexp.MustCompile(`왕복\s*([\d,]+)원`)
	airlineCharsRegex   = regexp.MustCompile(`^[\p{Hangul}a-zA-Z\s·,]+$`)
	digitRegex          = regexp.MustCompile(`\d`)
)

// ExtractParams carries the route-specific inputs of one parse.
type ExtractParams struct {
	Origin         string
	Destination    string
	DepartTimeFrom int
	ReturnTimeFrom int
}

// ParamsForRoute builds ExtractParams from a configured route.
func ParamsForRoute(r models.Route) ExtractParams {
	return ExtractParams{
		Origin:         r.Origin,
		Destination:    r.Destination,
		DepartTimeFrom: r.DepartTimeFrom,
		ReturnTimeFrom: r.ReturnTimeFrom,
	}
}

// Diagnostics counts why candidates were dropped during one parse.
type Diagnostics struct {
	Candidates   int
	NoInbound    int
	TooEarly     int
	MixedCarrier int
	NoPrice      int
}

// Extract parses the visible text of a results page into round-trip offers.
func Extract(text string, p ExtractParams) []models.FlightOffer {
	offers, _ := ExtractWithDiagnostics(text, p)
	return offers
}

// ExtractWithDiagnostics is Extract plus rejection counters for logging.
func ExtractWithDiagnostics(text string, p ExtractParams) ([]models.FlightOffer, Diagnostics) {
	lines := normalizeLines(text)
	outMarker := legMarkerRegex(p.Origin)
	retMarker := legMarkerRegex(p.Destination)

	var diag Diagnostics
	var offers []models.FlightOffer

	i := 0
	for i < len(lines) {
		if !outMarker.MatchString(lines[i]) {
			i++
			continue
		}
		// lines[i]   HH:MM<origin>       outbound departure
		// lines[i+1] HH:MM<destination>  outbound arrival
		// lines[i+2] "직항, ..."           nonstop confirmation
		if i+2 >= len(lines) || !retMarker.MatchString(lines[i+1]) || !isNonstop(lines[i+2]) {
			i++
			continue
		}
		diag.Candidates++

		ret := findInbound(lines, i+3, retMarker, outMarker)
		if ret < 0 {
			diag.NoInbound++
			i++
			continue
		}

		if leadingHour(lines[i]) < p.DepartTimeFrom || leadingHour(lines[ret]) < p.ReturnTimeFrom {
			diag.TooEarly++
			i++
			continue
		}

		airline := attributeAirline(lines, i)
		if isMixedCarrier(lines, i+3, ret, airline) {
			diag.MixedCarrier++
			i++
			continue
		}

		price, ok := findPrice(lines, ret+3)
		if !ok {
			diag.NoPrice++
			i++
			continue
		}

		offers = append(offers, models.FlightOffer{
			Airline: airline,
			Price:   price,
			Legs:    legText(lines, i, ret, p),
		})

		// resume past the confirmed inbound leg so it is never re-read as an
		// outbound marker.
		i = ret + 3
	}
	return offers, diag
}

func normalizeLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func legMarkerRegex(code string) *regexp.Regexp {
	return regexp.MustCompile(`^\d{2}:\d{2}` + regexp.QuoteMeta(code))
}

func isNonstop(line string) bool {
	return strings.Contains(line, nonstopIndicator) && !strings.Contains(line, connectingIndicator)
}

// findInbound returns the index of the first inbound departure marker within
// the bounded window starting at from that is followed by an arrival marker
// and whose leg is nonstop, or -1.
func findInbound(lines []string, from int, departure, arrival *regexp.Regexp) int {
	end := min(from+inboundSearchWindow, len(lines))
	for j := from; j < end; j++ {
		if departure.MatchString(lines[j]) && j+2 < len(lines) &&
			arrival.MatchString(lines[j+1]) && isNonstop(lines[j+2]) {
			return j
		}
	}
	return -1
}

func leadingHour(line string) int {
	h, err := strconv.Atoi(line[:2])
	if err != nil {
		return -1
	}
	return h
}

func isMeta(line string) bool {
	for _, kw := range metaKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return strings.TrimSpace(line) == discountLabel
}

// isAirlineName accepts short letter-only labels such as "대한항공" or
// "Peach Aviation".
func isAirlineName(line string) bool {
	if isMeta(line) || digitRegex.MatchString(line) {
		return false
	}
	if !airlineCharsRegex.MatchString(line) {
		return false
	}
	n := utf8.RuneCountInString(line)
	return n >= minAirlineLen && n <= maxAirlineLen
}

func attributeAirline(lines []string, outbound int) string {
	for k := outbound - 1; k >= 0 && k >= outbound-airlineLookBack; k-- {
		if isAirlineName(lines[k]) {
			return lines[k]
		}
	}
	return UnknownAirline
}

// isMixedCarrier reports whether a different airline label appears between
// the outbound leg and the inbound departure marker.
func isMixedCarrier(lines []string, from, to int, airline string) bool {
	for k := from; k < to; k++ {
		if isAirlineName(lines[k]) && lines[k] != airline {
			return true
		}
	}
	return false
}

func findPrice(lines []string, from int) (int, bool) {
	end := min(from+priceSearchWindow, len(lines))
	for j := from; j < end; j++ {
		m := roundTripPriceRegex.FindStringSubmatch(lines[j])
		if m == nil {
			continue
		}
		price, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil || price <= 0 {
			continue
		}
		return price, true
	}
	return 0, false
}

// clockPrefix returns the leading HH:MM of a leg marker line.
func clockPrefix(line string) string {
	r := []rune(line)
	if len(r) < 5 {
		return line
	}
	return string(r[:5])
}

func legText(lines []string, out, ret int, p ExtractParams) string {
	return clockPrefix(lines[out]) + " " + p.Origin + "→" + p.Destination + " " + clockPrefix(lines[out+1]) +
		" / " +
		clockPrefix(lines[ret]) + " " + p.Destination + "→" + p.Origin + " " + clockPrefix(lines[ret+1])
}
