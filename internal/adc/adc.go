// Package adc reads the ambient-light sensor as a normalized sample.
// The real implementation reads a Linux IIO channel through sysfs.
// The fake implementation allows testing without hardware.
package adc

// Sensor reads the light level.
type Sensor interface {
	// Read returns the light level normalized to [0,1].
	// Errors are hardware faults; the caller decides how to degrade.
	Read() (float64, error)

	// Close releases sensor resources.
	Close() error
}

// Defaults for an MCP3008-class 10-bit converter exposed via IIO.
const (
	DefaultDevice    = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
	DefaultFullScale = 1023
)
