// Package player plays tone sequences on the actuator with a paired
// indicator pulse for every audible step.
package player

import (
	"context"
	"time"

	"github.com/sweeney/light-orchestra/internal/clock"
	"github.com/sweeney/light-orchestra/internal/gpio"
	"github.com/sweeney/light-orchestra/internal/logic"
	"github.com/sweeney/light-orchestra/internal/metrics"
)

// Config controls how steps are rendered.
type Config struct {
	// Duty is the buzzer duty cycle used by Play.
	Duty float64
	// RandomBrightness pulses the indicator at a random brightness in
	// [BrightnessMin, BrightnessMax] instead of full brightness.
	RandomBrightness bool
	BrightnessMin    float64
	BrightnessMax    float64
}

// DefaultConfig returns full-brightness pulses at the autonomous duty cycle.
func DefaultConfig() Config {
	return Config{
		Duty:          logic.AutonomousDuty,
		BrightnessMin: logic.BrightnessMin,
		BrightnessMax: logic.BrightnessMax,
	}
}

// Sequencer steps through sequences on an actuator.
type Sequencer struct {
	out    *gpio.Safe
	clk    clock.Clock
	picker *logic.Picker
	cfg    Config
}

// New creates a Sequencer. picker supplies random melodies and brightness.
func New(out *gpio.Safe, clk clock.Clock, picker *logic.Picker, cfg Config) *Sequencer {
	return &Sequencer{
		out:    out,
		clk:    clk,
		picker: picker,
		cfg:    cfg,
	}
}

// Pick draws a melody uniformly from the catalog.
func (s *Sequencer) Pick() logic.Sequence {
	return s.picker.Pick()
}

// Play runs seq at the configured duty cycle.
func (s *Sequencer) Play(ctx context.Context, seq logic.Sequence, gap time.Duration) error {
	return s.PlayDuty(ctx, seq, gap, s.cfg.Duty)
}

// PlayDuty runs seq to completion or until ctx is cancelled, with gap of
// silence between steps. Every wait is a cancellation point. The actuator is
// always left silent with the indicator off on return.
func (s *Sequencer) PlayDuty(ctx context.Context, seq logic.Sequence, gap time.Duration, duty float64) (err error) {
	defer func() {
		s.out.Off()
		outcome := metrics.OutcomeCompleted
		if err != nil {
			outcome = metrics.OutcomeCancelled
		}
		metrics.SequencePlays.WithLabelValues(seq.Name, outcome).Inc()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	for i, st := range seq.Steps {
		if i > 0 && gap > 0 {
			if err := s.clk.Sleep(ctx, gap); err != nil {
				return err
			}
		}

		if st.Silent() {
			s.out.Off()
			if err := s.clk.Sleep(ctx, st.Duration); err != nil {
				return err
			}
			continue
		}

		s.out.Indicator(s.brightness())
		s.out.Tone(st.FrequencyHz, duty)
		err := s.clk.Sleep(ctx, st.Duration)
		s.out.Off()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) brightness() float64 {
	if !s.cfg.RandomBrightness || s.picker == nil {
		return 1
	}
	lo, hi := s.cfg.BrightnessMin, s.cfg.BrightnessMax
	return logic.Clamp01(lo + (hi-lo)*s.picker.Float64())
}
