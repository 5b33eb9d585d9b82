// Package control runs the per-tick decision loop: it consumes operator
// commands, reads the light sensor, tracks the baseline and, while armed,
// plays a melody when the light jumps.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/light-orchestra/internal/adc"
	"github.com/sweeney/light-orchestra/internal/arbiter"
	"github.com/sweeney/light-orchestra/internal/clock"
	"github.com/sweeney/light-orchestra/internal/command"
	"github.com/sweeney/light-orchestra/internal/gpio"
	"github.com/sweeney/light-orchestra/internal/logger"
	"github.com/sweeney/light-orchestra/internal/logic"
	"github.com/sweeney/light-orchestra/internal/metrics"
	"github.com/sweeney/light-orchestra/internal/player"
)

// ErrNoSamples is returned by Calibrate when every read in the burst failed.
var ErrNoSamples = errors.New("no sensor samples")

// Config holds the loop tuning.
type Config struct {
	TriggerDelta float64
	AlphaIdle    float64
	AlphaArmed   float64
	Cooldown     time.Duration
	StepGap      time.Duration
	SettleDelay  time.Duration

	CalibrationSamples int
	CalibrationDelay   time.Duration

	// StartArmed starts the loop in ModeArmed instead of ModeIdle.
	StartArmed bool
	// FaultLogInterval limits sensor fault warnings.
	FaultLogInterval time.Duration
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		TriggerDelta:       logic.TriggerDelta,
		AlphaIdle:          logic.AlphaIdle,
		AlphaArmed:         logic.AlphaArmed,
		Cooldown:           logic.Cooldown,
		StepGap:            logic.StepGap,
		SettleDelay:        logic.SettleDelay,
		CalibrationSamples: logic.CommandCalibrationSamples,
		CalibrationDelay:   logic.CalibrationDelay,
		FaultLogInterval:   10 * time.Second,
	}
}

// Deps are the collaborators the loop drives.
type Deps struct {
	Sensor    adc.Sensor
	Out       *gpio.Safe
	Clock     clock.Clock
	Sequencer *player.Sequencer
	Arbiter   *arbiter.Arbiter
	Mailbox   *command.Mailbox
}

// Result describes what one tick did.
type Result struct {
	// Command is the command consumed this tick, if any.
	Command *command.Command
	Fired   bool
	Event   logic.TriggerEvent
	// Quit is set when a quit command was consumed; the caller should stop.
	Quit     bool
	Sample   float64
	Baseline float64
	Mode     logic.Mode
}

// Snapshot is a point-in-time view of the loop for status consumers.
type Snapshot struct {
	Mode        logic.Mode
	Baseline    float64
	Sample      float64
	TaskActive  bool
	TaskID      string
	TaskLabel   string
	Triggers    int
	LastTrigger *logic.TriggerEvent
}

// Loop owns the signal filter, trigger detector and mode.
// Tick and Calibrate must be called from a single goroutine; Snapshot is
// safe from any goroutine.
type Loop struct {
	cfg Config
	d   Deps

	filter   *logic.SignalFilter
	detector *logic.TriggerDetector

	lastGood   float64
	sensorWarn rate.Sometimes

	mu          sync.RWMutex
	mode        logic.Mode
	baseline    float64
	sample      float64
	triggers    int
	lastTrigger *logic.TriggerEvent
}

// New creates a loop. The baseline starts at 0 until Calibrate or SetBaseline.
func New(cfg Config, d Deps) *Loop {
	mode := logic.ModeIdle
	if cfg.StartArmed {
		mode = logic.ModeArmed
	}
	l := &Loop{
		cfg:        cfg,
		d:          d,
		filter:     logic.NewSignalFilter(0),
		detector:   logic.NewTriggerDetector(cfg.TriggerDelta, cfg.Cooldown),
		sensorWarn: rate.Sometimes{Interval: cfg.FaultLogInterval},
		mode:       mode,
	}
	metrics.SetBool(metrics.Armed, mode == logic.ModeArmed)
	return l
}

// SetBaseline overrides the baseline.
func (l *Loop) SetBaseline(v float64) {
	l.filter.Set(v)
	l.publish(l.sample)
}

// Mode returns the current mode.
func (l *Loop) Mode() logic.Mode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode
}

// Tick runs one period of the loop.
func (l *Loop) Tick(ctx context.Context) Result {
	begin := time.Now()
	defer func() {
		metrics.TicksTotal.Inc()
		metrics.TickLatency.Observe(time.Since(begin).Seconds())
	}()

	var res Result
	if c, ok := l.d.Mailbox.Poll(); ok {
		res.Command = &c
		if l.handle(ctx, c) {
			res.Quit = true
			res.Mode = l.Mode()
			res.Baseline = l.filter.Baseline()
			res.Sample = l.sample
			return res
		}
	}

	sample := l.read(ctx)
	now := l.d.Clock.Now()
	before := l.filter.Baseline()
	mode := l.Mode()

	if mode == logic.ModeIdle {
		l.filter.Update(sample, l.cfg.AlphaIdle)
	} else {
		// The check runs against the baseline from before this sample was
		// folded in.
		if !l.d.Arbiter.IsActive() && l.detector.Check(sample, before, now) {
			res.Fired = true
			res.Event = logic.TriggerEvent{
				Timestamp: now,
				Sample:    sample,
				Baseline:  before,
				Delta:     sample - before,
			}
		}
		l.filter.Update(sample, l.cfg.AlphaArmed)
	}
	l.publish(sample)

	switch {
	case res.Fired:
		seq := l.d.Sequencer.Pick()
		res.Event.Sequence = seq.Name
		l.recordTrigger(res.Event)
		logger.InfoKV(ctx, "light trigger",
			"sample", sample, "baseline", before, "delta", res.Event.Delta, "sequence", seq.Name)

		if err := l.d.Sequencer.Play(ctx, seq, l.cfg.StepGap); err != nil {
			logger.DebugKV(ctx, "melody interrupted", "sequence", seq.Name, "error", err)
		}
		if err := l.d.Clock.Sleep(ctx, l.cfg.SettleDelay); err != nil {
			logger.DebugKV(ctx, "settle interrupted", "error", err)
		}
	case !l.d.Arbiter.IsActive():
		l.d.Out.Off()
	}

	res.Sample = sample
	res.Baseline = l.filter.Baseline()
	res.Mode = mode
	return res
}

// handle applies a command and reports whether it asks the loop to quit.
func (l *Loop) handle(ctx context.Context, c command.Command) bool {
	metrics.CommandsTotal.WithLabelValues(string(c.Kind)).Inc()
	ctx = logger.WithKV(ctx, "command", c.String(), "source", c.Source)

	switch c.Kind {
	case command.KindStart:
		l.setMode(logic.ModeArmed)
		logger.InfoKV(ctx, "light trigger armed", "baseline", l.filter.Baseline())
	case command.KindStop:
		l.setMode(logic.ModeIdle)
		l.d.Arbiter.CancelCurrent()
		l.d.Out.Off()
		logger.InfoKV(ctx, "light trigger disarmed")
	case command.KindCalibrate:
		if _, err := l.Calibrate(ctx, l.cfg.CalibrationSamples, l.cfg.CalibrationDelay); err != nil {
			logger.WarnKV(ctx, "calibration failed", "error", err)
		}
	case command.KindPlay:
		seq := c.Sequence()
		duty := c.Duty
		h := l.d.Arbiter.Submit("play", func(ctx context.Context) error {
			return l.d.Sequencer.PlayDuty(ctx, seq, 0, duty)
		})
		logger.InfoKV(ctx, "commanded tone", "task_id", h.ID.String())
	case command.KindQuit:
		logger.InfoKV(ctx, "quit requested")
		return true
	default:
		logger.WarnKV(ctx, "unrecognized command discarded", "error", c.Err)
	}
	return false
}

// Calibrate replaces the baseline with the mean of n samples taken delay
// apart. Failed reads are skipped; if all fail the baseline is unchanged.
func (l *Loop) Calibrate(ctx context.Context, n int, delay time.Duration) (float64, error) {
	samples := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v, err := l.d.Sensor.Read()
		if err != nil {
			metrics.SensorFaults.Inc()
		} else {
			samples = append(samples, v)
		}
		if err := l.d.Clock.Sleep(ctx, delay); err != nil {
			return l.filter.Baseline(), fmt.Errorf("calibrate: %w", err)
		}
	}
	if len(samples) == 0 {
		return l.filter.Baseline(), fmt.Errorf("calibrate: %w", ErrNoSamples)
	}

	b := l.filter.Calibrate(samples)
	l.lastGood = logic.Clamp01(samples[len(samples)-1])
	l.publish(l.lastGood)
	metrics.Calibrations.Inc()
	logger.InfoKV(ctx, "baseline calibrated", "baseline", b, "samples", len(samples))
	return b, nil
}

// Snapshot returns the current loop state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	s := Snapshot{
		Mode:     l.mode,
		Baseline: l.baseline,
		Sample:   l.sample,
		Triggers: l.triggers,
	}
	if l.lastTrigger != nil {
		ev := *l.lastTrigger
		s.LastTrigger = &ev
	}
	l.mu.RUnlock()

	if h, ok := l.d.Arbiter.Current(); ok {
		s.TaskActive = true
		s.TaskID = h.ID.String()
		s.TaskLabel = h.Label
	}
	return s
}

// read returns a fresh sample, or the last good one when the sensor fails.
func (l *Loop) read(ctx context.Context) float64 {
	v, err := l.d.Sensor.Read()
	if err != nil {
		metrics.SensorFaults.Inc()
		l.sensorWarn.Do(func() {
			logger.WarnKV(ctx, "sensor read failed, reusing last sample", "error", err, "last", l.lastGood)
		})
		return l.lastGood
	}
	v = logic.Clamp01(v)
	l.lastGood = v
	return v
}

func (l *Loop) setMode(m logic.Mode) {
	l.mu.Lock()
	l.mode = m
	l.mu.Unlock()
	metrics.SetBool(metrics.Armed, m == logic.ModeArmed)
}

func (l *Loop) publish(sample float64) {
	b := l.filter.Baseline()
	l.mu.Lock()
	l.baseline = b
	l.sample = sample
	l.mu.Unlock()
	metrics.Baseline.Set(b)
	metrics.Sample.Set(sample)
}

func (l *Loop) recordTrigger(ev logic.TriggerEvent) {
	l.mu.Lock()
	l.triggers++
	l.lastTrigger = &ev
	l.mu.Unlock()
	metrics.TriggersTotal.Inc()
}
