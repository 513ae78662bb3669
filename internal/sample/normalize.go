package sample

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// ErrUnusable marks a sample whose shape or content yields no orientation value.
var ErrUnusable = errors.New("unusable sample")

// Position of the roll-equivalent axis in a three-axis reading.
const controlAxis = 2

// Axes is the three-axis breakdown of a gyroscope reading.
type Axes struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Reading is a normalized sample.
type Reading struct {
	Value float64 `json:"value"`
	// Axes is set when the sample carried a three-axis breakdown.
	Axes *Axes `json:"axes,omitempty"`
	// Direction is set when the value came from the direction lexicon.
	Direction string `json:"direction,omitempty"`
}

// Normalize extracts the orientation scalar from v. It is total: every input
// yields either a finite value or an error wrapping ErrUnusable.
func Normalize(v Value) (Reading, error) {
	switch v.Kind {
	case Absent:
		return Reading{}, fmt.Errorf("%w: no sample", ErrUnusable)
	case Scalar:
		f, ok := finite(v.Num)
		if !ok {
			return Reading{}, fmt.Errorf("%w: non-finite %v", ErrUnusable, v.Num)
		}
		return Reading{Value: f}, nil
	case Label:
		return fromLabel(v.Text)
	case Vector:
		return fromVector(v.Items)
	default:
		return Reading{}, fmt.Errorf("%w: kind %s", ErrUnusable, v.Kind)
	}
}

func fromVector(items []Value) (Reading, error) {
	// The transport sometimes nests the actual reading one level deep.
	if len(items) > 0 && items[0].Kind == Vector {
		items = items[0].Items
	}

	switch {
	case len(items) >= 3:
		var xyz [3]float64
		for i := range xyz {
			f, err := axisValue(items[i])
			if err != nil {
				return Reading{}, fmt.Errorf("axis %d: %w", i, err)
			}
			xyz[i] = f
		}
		return Reading{
			Value: xyz[controlAxis],
			Axes:  &Axes{Alpha: xyz[0], Beta: xyz[1], Gamma: xyz[2]},
		}, nil
	case len(items) == 1:
		el := items[0]
		switch el.Kind {
		case Label:
			return fromLabel(el.Text)
		case Scalar:
			return Normalize(el)
		default:
			return Reading{}, fmt.Errorf("%w: single element of kind %s", ErrUnusable, el.Kind)
		}
	default:
		return Reading{}, fmt.Errorf("%w: sequence of length %d", ErrUnusable, len(items))
	}
}

// axisValue converts one axis position, unwrapping a one-element sequence.
func axisValue(v Value) (float64, error) {
	if v.Kind == Vector && len(v.Items) == 1 {
		v = v.Items[0]
	}
	switch v.Kind {
	case Scalar:
		if f, ok := finite(v.Num); ok {
			return f, nil
		}
	case Label:
		if f, ok := parseNumber(v.Text); ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: axis value %s", ErrUnusable, v)
}

func fromLabel(s string) (Reading, error) {
	if f, ok := LookupDirection(s); ok {
		return Reading{Value: f, Direction: s}, nil
	}
	if f, ok := parseNumber(s); ok {
		return Reading{Value: f}, nil
	}
	return Reading{}, fmt.Errorf("%w: unknown label %q", ErrUnusable, s)
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
