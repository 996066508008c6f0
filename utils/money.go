// utils/money.go
package utils

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var krPrinter = message.NewPrinter(language.Korean)

// FormatWon renders a KRW amount with thousands separators, e.g. "320,000원".
func FormatWon(amount int) string {
	return krPrinter.Sprintf("%d원", amount)
}

// FormatNumber renders n with thousands separators and no unit.
func FormatNumber(n int) string {
	return krPrinter.Sprintf("%d", n)
}
