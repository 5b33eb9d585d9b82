package logic

import "time"

// TriggerDetector decides whether a sample is a new light event.
// It has two states, Ready and Cooling, and moves between them on elapsed
// time only. Whether an event is acted upon is the caller's decision.
type TriggerDetector struct {
	delta    float64
	cooldown time.Duration
	lastFire time.Time
	fired    bool
}

// NewTriggerDetector creates a detector that fires when a sample exceeds the
// baseline by at least delta, at most once per cooldown.
func NewTriggerDetector(delta float64, cooldown time.Duration) *TriggerDetector {
	return &TriggerDetector{
		delta:    delta,
		cooldown: cooldown,
	}
}

// Check reports whether sample fires against baseline at now.
// On fire the cooldown window restarts at now.
func (d *TriggerDetector) Check(sample, baseline float64, now time.Time) bool {
	if sample-baseline < d.delta {
		return false
	}
	if !d.Ready(now) {
		return false
	}
	d.lastFire = now
	d.fired = true
	return true
}

// Ready reports whether the cooldown has elapsed at now.
// A detector that has never fired is always ready.
func (d *TriggerDetector) Ready(now time.Time) bool {
	if !d.fired {
		return true
	}
	return now.Sub(d.lastFire) >= d.cooldown
}

// LastFire returns the time of the last firing, if any.
func (d *TriggerDetector) LastFire() (time.Time, bool) {
	return d.lastFire, d.fired
}
