// services/dates.go
package services

import (
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// GenerateWindows expands the trip patterns into weeks consecutive weekly
// windows each, starting at the nearest departure weekday on or after today.
// Extra pairs are appended when their departure is not in the past and the
// exact pair is not already generated.
func GenerateWindows(today models.Date, patterns []models.TripPattern, weeks int, extras []models.ScanWindow) []models.ScanWindow {
	var windows []models.ScanWindow
	seen := make(map[models.ScanWindow]bool)

	for _, p := range patterns {
		ahead := (int(p.DepartWeekday) - int(today.Weekday()) + 7) % 7
		first := today.AddDays(ahead)
		length := p.TripLength()

		for week := 0; week < weeks; week++ {
			depart := first.AddDays(7 * week)
			w := models.ScanWindow{Depart: depart, Return: depart.AddDays(length)}
			if seen[w] {
				continue
			}
			seen[w] = true
			windows = append(windows, w)
		}
	}

	for _, w := range extras {
		if w.Depart.Before(today) || seen[w] {
			continue
		}
		seen[w] = true
		windows = append(windows, w)
	}
	return windows
}
