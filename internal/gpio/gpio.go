// Package gpio drives the buzzer and indicator LED with hardware abstraction.
// The real implementation uses the Linux GPIO character device with software
// PWM. The fake implementation allows testing without hardware.
package gpio

// Actuator is the write-only output capability: a square-wave tone
// generator and a dimmable indicator.
type Actuator interface {
	// Tone starts a square wave at freqHz with the given duty cycle in (0,1].
	// A zero frequency or duty silences the buzzer.
	Tone(freqHz uint32, duty float64) error

	// Silence stops the tone.
	Silence() error

	// Indicator sets the LED brightness in [0,1].
	Indicator(brightness float64) error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultPinBuzzer = 16
	DefaultPinLED    = 13
	DefaultLEDPWMHz  = 1000
)

// maxToneFreqHz bounds the software square wave; above this the sleep
// granularity makes the tone meaningless.
const maxToneFreqHz = 5000
