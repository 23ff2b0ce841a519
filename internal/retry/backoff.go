// Package retry provides the exponential backoff used when an accept
// loop hits a transient error.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff implements exponential backoff with optional jitter.  It is
// stateful: each call to Next returns a longer delay until Reset.
// A Backoff must not be shared between goroutines.
type Backoff struct {
	// InitialDelay is the first delay returned by Next (default 5ms).
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 1s).
	MaxDelay time.Duration
	// Multiplier increases the delay each attempt (default 2.0).
	Multiplier float64
	// Jitter adds ±25% randomisation to prevent thundering herd.
	Jitter bool

	current time.Duration
}

// Next returns the delay to wait before the next attempt and advances
// the schedule.
func (b *Backoff) Next() time.Duration {
	initial := b.InitialDelay
	if initial <= 0 {
		initial = 5 * time.Millisecond
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	if b.current == 0 {
		b.current = initial
	} else {
		b.current = time.Duration(float64(b.current) * multiplier)
	}
	if b.current > maxDelay {
		b.current = maxDelay
	}

	if b.Jitter {
		return addJitter(b.current)
	}
	return b.current
}

// Reset restarts the schedule at InitialDelay.  Call it after a
// successful attempt.
func (b *Backoff) Reset() {
	b.current = 0
}

// Wait sleeps for Next() or until ctx is done, whichever comes first.
// It returns ctx.Err() if the context ended the wait.
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
