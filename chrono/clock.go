// chrono/clock.go
package chrono

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"
)

// Clock is what every component asks for the current time. All calendar math
// (today's date, briefing hours, history timestamps) happens in Location.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type SystemClock struct {
	location *time.Location
}

// NewSystemClock loads the named IANA zone, e.g. "Asia/Seoul".
func NewSystemClock(zone string) (SystemClock, error) {
	location, err := time.LoadLocation(zone)
	if err != nil {
		return SystemClock{}, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return SystemClock{location: location}, nil
}

func (s SystemClock) Now() time.Time {
	return time.Now().In(s.location)
}

func (s SystemClock) Location() *time.Location {
	return s.location
}

// FixedClock is a manually advanced clock for tests.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Location() *time.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Location()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
