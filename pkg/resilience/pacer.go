package resilience

import (
	"context"
	"time"
)

// Pacer enforces a fixed pause between steps. Every call to Pause waits
// the full delay.
type Pacer struct {
	delay time.Duration
	after func(time.Duration) <-chan time.Time // for testing
}

// NewPacer creates a Pacer. A zero or negative delay makes Pause a no-op.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay, after: time.After}
}

// Pause blocks for the configured delay or until ctx is done.
func (p *Pacer) Pause(ctx context.Context) error {
	if p == nil || p.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.after(p.delay):
		return nil
	}
}
