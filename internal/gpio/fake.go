package gpio

import (
	"errors"
	"sync"
)

// Operations recorded by FakeActuator.
const (
	OpTone      = "tone"
	OpSilence   = "silence"
	OpIndicator = "indicator"
)

// Call is one recorded actuator write.
type Call struct {
	Op         string
	FreqHz     uint32
	Duty       float64
	Brightness float64
}

// FakeActuator records actuator writes for test assertions.
// Safe for concurrent use.
type FakeActuator struct {
	mu sync.Mutex

	calls      []Call
	sounding   bool
	freqHz     uint32
	brightness float64

	// ToneError, if set, is returned by Tone after recording the call.
	ToneError error
}

// NewFakeActuator creates a silent FakeActuator with the indicator off.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// Tone records a tone write.
func (f *FakeActuator) Tone(freqHz uint32, duty float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpTone, FreqHz: freqHz, Duty: duty})
	if freqHz == 0 || duty <= 0 {
		f.sounding = false
		f.freqHz = 0
	} else {
		f.sounding = true
		f.freqHz = freqHz
	}
	return f.ToneError
}

// Silence records a silence write.
func (f *FakeActuator) Silence() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpSilence})
	f.sounding = false
	f.freqHz = 0
	return nil
}

// Indicator records a brightness write.
func (f *FakeActuator) Indicator(brightness float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if brightness < 0 || brightness > 1 {
		return errors.New("brightness out of range")
	}
	f.calls = append(f.calls, Call{Op: OpIndicator, Brightness: brightness})
	f.brightness = brightness
	return nil
}

// Calls returns a copy of all recorded writes.
func (f *FakeActuator) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Tones returns the frequencies of recorded audible tone writes, in order.
func (f *FakeActuator) Tones() []uint32 {
	var out []uint32
	for _, c := range f.Calls() {
		if c.Op == OpTone && c.FreqHz > 0 {
			out = append(out, c.FreqHz)
		}
	}
	return out
}

// Sounding reports whether a tone is currently playing.
func (f *FakeActuator) Sounding() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sounding
}

// FrequencyHz returns the frequency of the current tone, 0 when silent.
func (f *FakeActuator) FrequencyHz() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freqHz
}

// Brightness returns the current indicator brightness.
func (f *FakeActuator) Brightness() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.brightness
}

// Reset clears recorded calls. Output state is kept.
func (f *FakeActuator) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
