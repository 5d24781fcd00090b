package gesture

import (
	"errors"
	"fmt"
)

// MaxSmoothing is the capacity of the history ring buffer.
const MaxSmoothing = 5

// BiasUnit is the fixed-point scale of the bias factors (10 = x1.0).
const BiasUnit = 10

var (
	// ErrInvalidSmoothing is returned when the smoothing window is outside [1, MaxSmoothing].
	ErrInvalidSmoothing = errors.New("smoothing window out of range")

	// ErrInvalidConfig is returned for other rejected tuning values.
	ErrInvalidConfig = errors.New("invalid classifier config")
)

// Config holds the immutable tuning parameters of a Classifier.
type Config struct {
	// Threshold is the minimum smoothed L1 magnitude required to emit an event.
	Threshold int `json:"threshold"`

	// VerticalBias and HorizontalBias weight each axis before comparison.
	// Fixed point, BiasUnit = x1.0.
	VerticalBias   int `json:"vertical_bias"`
	HorizontalBias int `json:"horizontal_bias"`

	// Smoothing is the number of most recent samples averaged (1..MaxSmoothing).
	Smoothing int `json:"smoothing"`

	// DiagonalThreshold is reserved. It is carried with the config but never
	// consulted by the classification rule.
	DiagonalThreshold int `json:"diagonal_threshold"`
}

// DefaultConfig returns neutral tuning: unit biases and a three-sample window.
func DefaultConfig() Config {
	return Config{
		Threshold:      5,
		VerticalBias:   BiasUnit,
		HorizontalBias: BiasUnit,
		Smoothing:      3,
	}
}

// Validate reports whether c can back a Classifier.
func (c Config) Validate() error {
	if c.Smoothing < 1 || c.Smoothing > MaxSmoothing {
		return fmt.Errorf("%w: smoothing=%d (must be 1..%d)", ErrInvalidSmoothing, c.Smoothing, MaxSmoothing)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("%w: threshold=%d (must be >= 0)", ErrInvalidConfig, c.Threshold)
	}
	if c.VerticalBias < 0 {
		return fmt.Errorf("%w: vertical_bias=%d (must be >= 0)", ErrInvalidConfig, c.VerticalBias)
	}
	if c.HorizontalBias < 0 {
		return fmt.Errorf("%w: horizontal_bias=%d (must be >= 0)", ErrInvalidConfig, c.HorizontalBias)
	}
	return nil
}
