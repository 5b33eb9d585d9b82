// Package clock provides the time source for the control core.
// Sleep is a suspension point: it returns early when its context is
// cancelled, which is how long tones are interrupted.
package clock

import (
	"context"
	"time"
)

// Clock reads the current time and sleeps cancellably.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	// It returns ctx.Err() when interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock. Time values carry the monotonic reading, so
// subtraction between them is immune to wall clock steps.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep waits for d or ctx cancellation.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
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
