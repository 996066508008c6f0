// utils/airports.go
package utils

import "strings"

// NormalizeAirportCode upper-cases and trims an airport code. 4-letter ICAO
// codes with a known IATA equivalent are mapped down to the 3-letter form the
// fare search uses (e.g. "RKSI" -> "ICN").
func NormalizeAirportCode(code string) string {
	upperCode := strings.ToUpper(strings.TrimSpace(code))
	if iata, ok := icaoToIATA[upperCode]; ok {
		return iata
	}
	return upperCode
}

// IsIATACode reports whether code is exactly three ASCII letters.
func IsIATACode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

var icaoToIATA = map[string]string{
	"RKSI": "ICN",
	"RKSS": "GMP",
	"RKPK": "PUS",
	"RKPC": "CJU",
	"RJFF": "FUK",
	"RJAA": "NRT",
	"RJTT": "HND",
	"RJBB": "KIX",
	"RJCC": "CTS",
	"ROAH": "OKA",
}

// AirportName returns the Korean city name used in messages, or the code
// itself when unknown.
func AirportName(code string) string {
	if name, ok := airportNames[code]; ok {
		return name
	}
	return code
}

var airportNames = map[string]string{
	"ICN": "인천",
	"GMP": "김포",
	"PUS": "부산",
	"CJU": "제주",
	"FUK": "후쿠오카",
	"NRT": "나리타",
	"HND": "하네다",
	"KIX": "오사카",
	"CTS": "삿포로",
	"OKA": "오키나와",
}
