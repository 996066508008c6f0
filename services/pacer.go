// services/pacer.go
package services

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer spaces out requests to the results site. Pause returns early with
// ctx.Err() when the context is cancelled.
type Pacer interface {
	Pause(ctx context.Context) error
}

// JitterPacer sleeps a uniformly random duration in [Min, Max].
type JitterPacer struct {
	Min time.Duration
	Max time.Duration
}

func (p JitterPacer) Delay() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rand.Int64N(int64(p.Max-p.Min)+1))
}

func (p JitterPacer) Pause(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoPacer never waits. Used by tests and one-off verification runs.
type NoPacer struct{}

func (NoPacer) Pause(ctx context.Context) error { return ctx.Err() }
