package tilt

import (
	"errors"
	"fmt"
	"math"

	"tilt_control/internal/models"
)

// ClampLimit bounds the control value to [-ClampLimit, ClampLimit].
const ClampLimit = 10.0

// Defaults measured with the extended calibration run.
const (
	DefaultBaseline    = -0.88
	DefaultDeadZone    = 1.3
	DefaultScaleFactor = 0.77
)

// ErrInvalidParams marks a rejected tuning.
var ErrInvalidParams = errors.New("invalid tilt params")

// Params configures baseline subtraction, dead zone and scaling.
type Params = models.TiltParams

// DefaultParams returns the factory tuning.
func DefaultParams() Params {
	return Params{
		Baseline:    DefaultBaseline,
		DeadZone:    DefaultDeadZone,
		ScaleFactor: DefaultScaleFactor,
	}
}

// ValidateParams rejects non-finite values, a negative dead zone and a
// non-positive scale factor.
func ValidateParams(p Params) error {
	for name, v := range map[string]float64{
		"baseline":     p.Baseline,
		"dead_zone":    p.DeadZone,
		"scale_factor": p.ScaleFactor,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidParams, name)
		}
	}
	if p.DeadZone < 0 {
		return fmt.Errorf("%w: dead_zone must be >= 0, got %g", ErrInvalidParams, p.DeadZone)
	}
	if p.ScaleFactor <= 0 {
		return fmt.Errorf("%w: scale_factor must be > 0, got %g", ErrInvalidParams, p.ScaleFactor)
	}
	return nil
}

// Apply maps an orientation value to the control value: subtract the
// baseline, zero anything inside the dead zone, scale, clamp.
func Apply(p Params, value float64) float64 {
	offset := value - p.Baseline
	if math.Abs(offset) < p.DeadZone {
		return 0
	}
	return clamp(offset * p.ScaleFactor)
}

func clamp(v float64) float64 {
	return math.Max(-ClampLimit, math.Min(ClampLimit, v))
}
