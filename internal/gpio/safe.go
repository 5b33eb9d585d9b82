package gpio

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/light-orchestra/internal/logger"
	"github.com/sweeney/light-orchestra/internal/metrics"
)

// Safe wraps an Actuator so that write faults are counted and logged, never
// returned. Hardware writes are fire-and-forget for the control core.
type Safe struct {
	act  Actuator
	warn rate.Sometimes
}

// NewSafe wraps act. Fault logs are limited to one per interval.
func NewSafe(act Actuator, interval time.Duration) *Safe {
	return &Safe{
		act:  act,
		warn: rate.Sometimes{Interval: interval},
	}
}

// Tone starts a tone.
func (s *Safe) Tone(freqHz uint32, duty float64) {
	s.check(OpTone, s.act.Tone(freqHz, duty))
}

// Silence stops any tone.
func (s *Safe) Silence() {
	s.check(OpSilence, s.act.Silence())
}

// Indicator sets the LED brightness.
func (s *Safe) Indicator(brightness float64) {
	s.check(OpIndicator, s.act.Indicator(brightness))
}

// Off silences the buzzer and turns the indicator off.
func (s *Safe) Off() {
	s.Silence()
	s.Indicator(0)
}

func (s *Safe) check(op string, err error) {
	if err == nil {
		return
	}
	metrics.ActuatorFaults.WithLabelValues(op).Inc()
	s.warn.Do(func() {
		logger.Logger().Warnw("actuator write failed", "op", op, "error", err)
	})
}
