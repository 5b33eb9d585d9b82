package clock

import (
	"context"
	"sync"
	"time"
)

// Fake is a manually driven clock for tests.
//
// In auto mode (the default from NewFake) Sleep advances the clock by the
// requested duration and returns immediately, so sequential code runs
// instantly with exact timestamps. In manual mode Sleep blocks until Advance
// moves the clock past the deadline or the context is cancelled.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	manual  bool
	waiters []*waiter
	slept   time.Duration
}

type waiter struct {
	until time.Time
	ch    chan struct{}
}

// NewFake creates an auto-advancing fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// NewManualFake creates a fake clock whose sleepers block until Advance.
func NewManualFake(start time.Time) *Fake {
	return &Fake{now: start, manual: true}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances (auto mode) or waits for Advance (manual mode).
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	f.mu.Lock()
	if !f.manual {
		f.now = f.now.Add(d)
		f.slept += d
		f.mu.Unlock()
		return nil
	}
	w := &waiter{until: f.now.Add(d), ch: make(chan struct{})}
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		f.remove(w)
		return ctx.Err()
	}
}

// Advance moves the clock forward and wakes sleepers whose deadline passed.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)

	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.until.After(f.now) {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

// Sleepers returns how many goroutines are blocked in Sleep (manual mode).
func (f *Fake) Sleepers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// Slept returns the total time slept in auto mode.
func (f *Fake) Slept() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slept
}

func (f *Fake) remove(target *waiter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == target {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}
