package tilt

import "math"

// Consumer-side motion mapping. MotionDeadBand is applied to the already
// conditioned control value and is unrelated to Params.DeadZone.
const (
	MotionDeadBand  = 0.3
	FullScaleTilt   = 8.0
	DefaultMaxSpeed = 7.0
)

// Directions reported alongside the move speed.
const (
	DirectionLeft   = "LEFT"
	DirectionRight  = "RIGHT"
	DirectionCenter = "CENTER"
)

// MoveSpeed converts a control value into a signed horizontal speed
// (negative = left). Tilts up to MotionDeadBand produce no motion; the speed
// ramps linearly to maxSpeed at FullScaleTilt.
func MoveSpeed(tilt, maxSpeed float64) float64 {
	mag := math.Abs(tilt)
	if mag <= MotionDeadBand {
		return 0
	}
	normalized := math.Min((mag-MotionDeadBand)/(FullScaleTilt-MotionDeadBand), 1.0)
	return math.Copysign(normalized*maxSpeed, tilt)
}

// Direction names the side the consumer would move to.
func Direction(tilt float64) string {
	switch {
	case math.Abs(tilt) <= MotionDeadBand:
		return DirectionCenter
	case tilt < 0:
		return DirectionLeft
	default:
		return DirectionRight
	}
}
