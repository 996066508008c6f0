// models/date.go
package models

import (
	"fmt"
	"time"
)

const (
	DateLayout        = "2006-01-02"
	CompactDateLayout = "20060102"
)

// Date is a calendar date with no time-of-day or zone attached.
// Windows and ledger keys are built from Dates so that comparisons never
// depend on the host's local time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes out-of-range values (e.g. day 32) the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts both "2006-01-02" and "20060102".
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{DateLayout, CompactDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

func (d Date) t() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string { return d.t().Format(DateLayout) }

// Compact renders the date as YYYYMMDD, the form used in search URLs.
func (d Date) Compact() string { return d.t().Format(CompactDateLayout) }

func (d Date) AddDays(n int) Date { return DateOf(d.t().AddDate(0, 0, n)) }

func (d Date) Before(o Date) bool { return d.t().Before(o.t()) }

func (d Date) After(o Date) bool { return d.t().After(o.t()) }

func (d Date) IsZero() bool { return d == Date{} }

// Weekday uses the Monday=0 ... Sunday=6 convention of the trip patterns.
func (d Date) Weekday() Weekday {
	return WeekdayFromTime(d.t().Weekday())
}

// Weekday is a day-of-week where Monday is 0 and Sunday is 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func WeekdayFromTime(w time.Weekday) Weekday {
	return Weekday((int(w) + 6) % 7)
}

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
