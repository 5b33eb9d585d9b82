package player

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/light-orchestra/internal/clock"
	"github.com/sweeney/light-orchestra/internal/gpio"
	"github.com/sweeney/light-orchestra/internal/logic"
)

var start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestSequencer(clk clock.Clock, cfg Config) (*Sequencer, *gpio.FakeActuator) {
	act := gpio.NewFakeActuator()
	picker := logic.NewPicker(logic.Catalog, rand.New(rand.NewSource(42)))
	return New(gpio.NewSafe(act, time.Minute), clk, picker, cfg), act
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestPlayFullSequence(t *testing.T) {
	clk := clock.NewFake(start)
	s, act := newTestSequencer(clk, DefaultConfig())

	seq := logic.Sequence{Name: "test", Steps: []logic.Step{
		{FrequencyHz: 392, Duration: ms(200)},
		{FrequencyHz: 349, Duration: ms(200)},
		{FrequencyHz: 523, Duration: ms(340)},
	}}

	require.NoError(t, s.Play(context.Background(), seq, logic.StepGap))

	require.Equal(t, []uint32{392, 349, 523}, act.Tones())
	require.Equal(t, ms(740)+2*logic.StepGap, clk.Slept())
	require.False(t, act.Sounding())
	require.Zero(t, act.Brightness())
}

func TestPlayPairsIndicatorWithTone(t *testing.T) {
	s, act := newTestSequencer(clock.NewFake(start), DefaultConfig())

	seq := logic.Sequence{Steps: []logic.Step{{FrequencyHz: 440, Duration: ms(100)}}}
	require.NoError(t, s.Play(context.Background(), seq, 0))

	calls := act.Calls()
	require.GreaterOrEqual(t, len(calls), 4)
	require.Equal(t, gpio.Call{Op: gpio.OpIndicator, Brightness: 1}, calls[0])
	require.Equal(t, gpio.Call{Op: gpio.OpTone, FreqHz: 440, Duty: logic.AutonomousDuty}, calls[1])
	require.Equal(t, gpio.Call{Op: gpio.OpSilence}, calls[2])
	require.Equal(t, gpio.Call{Op: gpio.OpIndicator, Brightness: 0}, calls[3])
}

func TestPlaySilentStep(t *testing.T) {
	clk := clock.NewFake(start)
	s, act := newTestSequencer(clk, DefaultConfig())

	seq := logic.Sequence{Steps: []logic.Step{
		{FrequencyHz: 0, Duration: ms(300)},
	}}
	require.NoError(t, s.Play(context.Background(), seq, logic.StepGap))

	require.Empty(t, act.Tones())
	require.Equal(t, ms(300), clk.Slept())
	for _, c := range act.Calls() {
		if c.Op == gpio.OpIndicator {
			require.Zero(t, c.Brightness, "indicator must stay off during a rest")
		}
	}
}

func TestPlayCustomDuty(t *testing.T) {
	s, act := newTestSequencer(clock.NewFake(start), DefaultConfig())

	seq := logic.Sequence{Steps: []logic.Step{{FrequencyHz: 440, Duration: ms(10)}}}
	require.NoError(t, s.PlayDuty(context.Background(), seq, 0, 0.25))

	for _, c := range act.Calls() {
		if c.Op == gpio.OpTone {
			require.Equal(t, 0.25, c.Duty)
		}
	}
}

func TestPlayCancelledMidTone(t *testing.T) {
	clk := clock.NewManualFake(start)
	s, act := newTestSequencer(clk, DefaultConfig())

	seq := logic.Sequence{Steps: []logic.Step{
		{FrequencyHz: 523, Duration: ms(1000)},
		{FrequencyHz: 659, Duration: ms(1000)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Play(ctx, seq, logic.StepGap) }()

	require.Eventually(t, func() bool { return clk.Sleepers() == 1 }, time.Second, time.Millisecond)
	require.True(t, act.Sounding())
	require.Equal(t, 1.0, act.Brightness())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.False(t, act.Sounding())
	require.Zero(t, act.Brightness())
	require.Equal(t, []uint32{523}, act.Tones())
}

func TestPlayCancelledDuringGap(t *testing.T) {
	clk := clock.NewManualFake(start)
	s, act := newTestSequencer(clk, DefaultConfig())

	seq := logic.Sequence{Steps: []logic.Step{
		{FrequencyHz: 523, Duration: ms(100)},
		{FrequencyHz: 659, Duration: ms(100)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Play(ctx, seq, ms(500)) }()

	require.Eventually(t, func() bool { return clk.Sleepers() == 1 }, time.Second, time.Millisecond)
	clk.Advance(ms(100))
	// Now in the gap.
	require.Eventually(t, func() bool { return clk.Sleepers() == 1 && !act.Sounding() }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, []uint32{523}, act.Tones())
	require.False(t, act.Sounding())
	require.Zero(t, act.Brightness())
}

func TestPlayAlreadyCancelled(t *testing.T) {
	s, act := newTestSequencer(clock.NewFake(start), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Play(ctx, logic.Catalog[0], logic.StepGap)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, act.Tones())
	require.False(t, act.Sounding())
}

func TestPlayEveryCatalogMelodyEndsOff(t *testing.T) {
	for _, seq := range logic.Catalog {
		t.Run(seq.Name, func(t *testing.T) {
			s, act := newTestSequencer(clock.NewFake(start), DefaultConfig())
			require.NoError(t, s.Play(context.Background(), seq, logic.StepGap))
			require.Len(t, act.Tones(), len(seq.Steps))
			require.False(t, act.Sounding())
			require.Zero(t, act.Brightness())
		})
	}
}

func TestRandomBrightnessWithinRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RandomBrightness = true
	s, act := newTestSequencer(clock.NewFake(start), cfg)

	require.NoError(t, s.Play(context.Background(), logic.Catalog[1], logic.StepGap))

	pulses := 0
	for _, c := range act.Calls() {
		if c.Op == gpio.OpIndicator && c.Brightness > 0 {
			pulses++
			require.GreaterOrEqual(t, c.Brightness, logic.BrightnessMin)
			require.LessOrEqual(t, c.Brightness, logic.BrightnessMax)
		}
	}
	require.Equal(t, len(logic.Catalog[1].Steps), pulses)
}

func TestPickIsSeeded(t *testing.T) {
	a, _ := newTestSequencer(clock.NewFake(start), DefaultConfig())
	b, _ := newTestSequencer(clock.NewFake(start), DefaultConfig())

	for i := 0; i < 10; i++ {
		require.Equal(t, a.Pick().Name, b.Pick().Name)
	}
}
