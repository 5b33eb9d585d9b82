//go:build !linux

package gpio

import "errors"

// RealActuator is not available on non-Linux platforms.
type RealActuator struct{}

// NewRealActuator returns an error on non-Linux platforms.
func NewRealActuator(chipName string, pinBuzzer, pinLED, ledPWMHz int) (*RealActuator, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Tone is not implemented on non-Linux platforms.
func (a *RealActuator) Tone(freqHz uint32, duty float64) error {
	return errors.New("gpio: not supported")
}

// Silence is not implemented on non-Linux platforms.
func (a *RealActuator) Silence() error {
	return errors.New("gpio: not supported")
}

// Indicator is not implemented on non-Linux platforms.
func (a *RealActuator) Indicator(brightness float64) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (a *RealActuator) Close() error {
	return nil
}
