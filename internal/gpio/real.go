//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealActuator drives a passive buzzer and an LED from two GPIO lines using
// software PWM.
type RealActuator struct {
	chip      *gpiocdev.Chip
	buzzer    *softPWM
	led       *softPWM
	ledPeriod time.Duration
}

// NewRealActuator requests the buzzer and LED lines as outputs driven low.
func NewRealActuator(chipName string, pinBuzzer, pinLED, ledPWMHz int) (*RealActuator, error) {
	if ledPWMHz <= 0 {
		return nil, fmt.Errorf("led pwm frequency must be positive, got %d", ledPWMHz)
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	buzzerLine, err := chip.RequestLine(pinBuzzer, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request buzzer pin %d: %w", pinBuzzer, err)
	}

	ledLine, err := chip.RequestLine(pinLED, gpiocdev.AsOutput(0))
	if err != nil {
		buzzerLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request LED pin %d: %w", pinLED, err)
	}

	return &RealActuator{
		chip:      chip,
		buzzer:    newSoftPWM(buzzerLine),
		led:       newSoftPWM(ledLine),
		ledPeriod: time.Second / time.Duration(ledPWMHz),
	}, nil
}

// Tone starts a square wave on the buzzer line.
func (a *RealActuator) Tone(freqHz uint32, duty float64) error {
	if freqHz == 0 || duty <= 0 {
		return a.Silence()
	}
	if freqHz > maxToneFreqHz {
		freqHz = maxToneFreqHz
	}
	if duty > 1 {
		duty = 1
	}
	period := time.Second / time.Duration(freqHz)
	return a.buzzer.set(period, time.Duration(float64(period)*duty))
}

// Silence holds the buzzer line low.
func (a *RealActuator) Silence() error {
	return a.buzzer.set(0, 0)
}

// Indicator sets the LED duty cycle.
func (a *RealActuator) Indicator(brightness float64) error {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 1 {
		brightness = 1
	}
	return a.led.set(a.ledPeriod, time.Duration(float64(a.ledPeriod)*brightness))
}

// Close stops both outputs and releases the lines.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing so nothing is left driven across a reboot.
func (a *RealActuator) Close() error {
	var errs []error

	a.buzzer.stop()
	a.led.stop()

	for name, l := range map[string]*gpiocdev.Line{"buzzer": a.buzzer.line, "LED": a.led.line} {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if err := a.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	return errors.Join(errs...)
}

// softPWM toggles one line from its own goroutine.
// high <= 0 holds the line low; high >= period holds it high.
type softPWM struct {
	line *gpiocdev.Line

	mu      sync.Mutex
	period  time.Duration
	high    time.Duration
	lastErr error

	update chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

func newSoftPWM(line *gpiocdev.Line) *softPWM {
	p := &softPWM{
		line:   line,
		update: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// set changes the waveform and returns the last write error seen since the
// previous call.
func (p *softPWM) set(period, high time.Duration) error {
	p.mu.Lock()
	p.period = period
	p.high = high
	err := p.lastErr
	p.lastErr = nil
	p.mu.Unlock()

	select {
	case p.update <- struct{}{}:
	default:
	}
	return err
}

func (p *softPWM) stop() {
	close(p.quit)
	<-p.done
	p.write(0)
}

func (p *softPWM) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		period, high := p.period, p.high
		p.mu.Unlock()

		if high <= 0 || high >= period {
			if high <= 0 {
				p.write(0)
			} else {
				p.write(1)
			}
			select {
			case <-p.update:
				continue
			case <-p.quit:
				return
			}
		}

		p.write(1)
		if p.wait(high) {
			return
		}
		p.write(0)
		if p.wait(period - high) {
			return
		}
	}
}

func (p *softPWM) wait(d time.Duration) (quit bool) {
	t := time.NewTimer(d)
	select {
	case <-t.C:
		return false
	case <-p.quit:
		t.Stop()
		return true
	}
}

func (p *softPWM) write(v int) {
	if err := p.line.SetValue(v); err != nil {
		p.mu.Lock()
		p.lastErr = fmt.Errorf("set line %d: %w", v, err)
		p.mu.Unlock()
	}
}
