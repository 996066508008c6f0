// utils/dates.go
package utils

import (
	"fmt"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

var koreanWeekdays = [7]string{"월", "화", "수", "목", "금", "토", "일"}

// KoreanWeekday returns the one-character weekday label (Monday = "월").
func KoreanWeekday(w models.Weekday) string {
	if !w.Valid() {
		return "?"
	}
	return koreanWeekdays[w]
}

// ShortDateLabel renders a date as "MM/DD(요일)", e.g. "10/16(금)".
func ShortDateLabel(d models.Date) string {
	return fmt.Sprintf("%02d/%02d(%s)", int(d.Month), d.Day, KoreanWeekday(d.Weekday()))
}
