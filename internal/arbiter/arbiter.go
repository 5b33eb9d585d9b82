// Package arbiter runs at most one commanded actuation at a time.
//
// A newer task preempts the running one: the old task's context is cancelled,
// its goroutine is awaited, and the actuator is silenced before the new task
// starts. A task that finishes on its own clears the slot itself. Every path
// that clears the slot silences the actuator first.
package arbiter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/light-orchestra/internal/logger"
	"github.com/sweeney/light-orchestra/internal/metrics"
)

// Task is a cancellable actuation. It must return promptly once ctx is done.
type Task func(ctx context.Context) error

// Silencer is the part of the actuator the arbiter needs.
type Silencer interface {
	Off()
}

// Handle describes a task that was accepted by the arbiter.
type Handle struct {
	ID      uuid.UUID
	Label   string
	Started time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the task goroutine has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Arbiter holds the single task slot.
type Arbiter struct {
	ctx context.Context
	out Silencer
	now func() time.Time

	mu      sync.Mutex
	current *Handle
}

// New creates an Arbiter. Tasks run with contexts derived from ctx, so
// cancelling ctx stops any running task.
func New(ctx context.Context, out Silencer, now func() time.Time) *Arbiter {
	return &Arbiter{
		ctx: ctx,
		out: out,
		now: now,
	}
}

// Submit installs task as the active one, cancelling any task already in
// flight. It always accepts: the last command wins.
func (a *Arbiter) Submit(label string, task Task) *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelLocked()

	taskCtx, cancel := context.WithCancel(a.ctx)
	h := &Handle{
		ID:      uuid.New(),
		Label:   label,
		Started: a.now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	a.current = h
	metrics.TaskActive.Set(1)

	taskCtx = logger.WithKV(taskCtx, "task_id", h.ID.String(), "task", label)
	logger.InfoKV(taskCtx, "task started")

	go a.run(taskCtx, h, task)

	return h
}

// CancelCurrent cancels and clears the active task. It reports whether a
// task was active; with none active it does nothing.
func (a *Arbiter) CancelCurrent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelLocked()
}

// IsActive reports whether a commanded task currently owns the actuator.
func (a *Arbiter) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

// Current returns the active handle, if any.
func (a *Arbiter) Current() (*Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, a.current != nil
}

// Close cancels the active task, if any.
func (a *Arbiter) Close() {
	a.CancelCurrent()
}

// cancelLocked stops the current task and waits for its goroutine, then
// silences the actuator and clears the slot. Caller holds a.mu.
// The task goroutine closes done before it takes a.mu, so waiting here
// cannot deadlock.
func (a *Arbiter) cancelLocked() bool {
	h := a.current
	if h == nil {
		return false
	}
	h.cancel()
	<-h.done
	a.out.Off()
	a.current = nil
	metrics.TaskActive.Set(0)
	return true
}

func (a *Arbiter) run(ctx context.Context, h *Handle, task Task) {
	err := task(ctx)
	close(h.done)

	if ctx.Err() != nil {
		// Preempted or cancelled; the canceller owns cleanup.
		metrics.TasksTotal.WithLabelValues(metrics.OutcomeCancelled).Inc()
		logger.InfoKV(ctx, "task cancelled")
		return
	}
	if err != nil {
		logger.WarnKV(ctx, "task failed", "error", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != h {
		return
	}
	a.out.Off()
	a.current = nil
	h.cancel()
	metrics.TaskActive.Set(0)
	metrics.TasksTotal.WithLabelValues(metrics.OutcomeCompleted).Inc()
	logger.InfoKV(ctx, "task finished", "elapsed", a.now().Sub(h.Started))
}
