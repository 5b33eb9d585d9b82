package adc

import (
	"errors"
	"sync"
)

// FakeSensor is a test double that returns scripted samples.
type FakeSensor struct {
	mu sync.Mutex

	// Samples contains scripted values to return.
	// Each call to Read() consumes the next sample.
	Samples []float64

	// index tracks current position in Samples
	index int

	// Reads counts calls to Read.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeSensor creates a FakeSensor with the given samples.
func NewFakeSensor(samples ...float64) *FakeSensor {
	return &FakeSensor{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeSensor) Read() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++

	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// SetError sets or clears the error returned by Read.
func (f *FakeSensor) SetError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// Close marks the sensor as closed.
func (f *FakeSensor) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
