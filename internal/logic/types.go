// Package logic contains the pure decision logic of the light trigger:
// baseline tracking, trigger detection and the melody catalog.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"math"
	"time"
)

// Tuning defaults. The alpha names follow what the smoothing speed is used
// for: AlphaIdle tracks ambient light quickly while disarmed, AlphaArmed drifts
// slowly so a light burst is not absorbed into the baseline.
const (
	TriggerDelta = 0.05
	AlphaIdle    = 0.02
	AlphaArmed   = 0.005

	Cooldown    = 400 * time.Millisecond
	CheckPeriod = 40 * time.Millisecond
	StepGap     = 25 * time.Millisecond
	SettleDelay = 80 * time.Millisecond

	// Random indicator brightness range for visual pulsing.
	BrightnessMin = 0.2
	BrightnessMax = 0.95

	AutonomousDuty = 0.48
	CommandDuty    = 0.5

	StartupCalibrationSamples = 25
	CommandCalibrationSamples = 40
	CalibrationDelay          = 20 * time.Millisecond
)

// Mode is whether autonomous triggering is active.
type Mode string

const (
	ModeIdle  Mode = "IDLE"
	ModeArmed Mode = "ARMED"
)

// Step is one tone (or rest, when FrequencyHz is 0) of a sequence.
type Step struct {
	FrequencyHz uint32
	Duration    time.Duration
}

// Silent reports whether the step is a rest.
func (s Step) Silent() bool {
	return s.FrequencyHz == 0
}

// Sequence is an ordered, immutable list of steps.
type Sequence struct {
	Name  string
	Steps []Step
}

// Duration returns the total audible/rest time of the sequence, excluding gaps.
func (s Sequence) Duration() time.Duration {
	var d time.Duration
	for _, st := range s.Steps {
		d += st.Duration
	}
	return d
}

// TriggerEvent is emitted when a sample crosses the baseline by at least
// TriggerDelta outside the cooldown window.
type TriggerEvent struct {
	Timestamp time.Time
	Sample    float64
	Baseline  float64
	Delta     float64
	Sequence  string
}

// Clamp01 limits v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
