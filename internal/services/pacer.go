package services

import (
	"context"
	"time"
)

// Pacer gates outbound storefront traffic during a refresh. Wait blocks
// until the next unit of work may start, or until ctx is done.
type Pacer interface {
	Wait(ctx context.Context) error
}

// DelayPacer sleeps a fixed interval on every Wait, counted from the call.
// It keeps no state between calls, so idle time and slow fetches never
// shorten a pause and one pacer may serve concurrent runs.
type DelayPacer struct {
	Interval time.Duration
}

// NewDelayPacer returns a pacer with the given interval. A non-positive
// interval never blocks.
func NewDelayPacer(interval time.Duration) DelayPacer {
	return DelayPacer{Interval: interval}
}

// Wait blocks for the interval or returns ctx.Err() once ctx is done.
func (p DelayPacer) Wait(ctx context.Context) error {
	if p.Interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Interval)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoPacer never blocks; it only observes cancellation.
type NoPacer struct{}

// Wait returns ctx.Err().
func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }
