package adc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/light-orchestra/internal/logic"
)

// RealSensor reads a raw IIO channel file and scales it by fullScale.
type RealSensor struct {
	path      string
	fullScale float64
}

// NewRealSensor validates the channel file and returns a sensor for it.
func NewRealSensor(path string, fullScale int) (*RealSensor, error) {
	if fullScale <= 0 {
		return nil, errors.New("adc: full scale must be positive")
	}
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open adc channel: %w", err)
	}
	return &RealSensor{path: path, fullScale: float64(fullScale)}, nil
}

// Read returns raw/fullScale clamped to [0,1].
func (s *RealSensor) Read() (float64, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read adc channel: %w", err)
	}
	raw, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse adc value %q: %w", strings.TrimSpace(string(b)), err)
	}
	return logic.Clamp01(raw / s.fullScale), nil
}

// Close is a no-op; the channel file is opened per read.
func (s *RealSensor) Close() error {
	return nil
}
