// Package sample turns raw telemetry payloads into a single orientation scalar.
//
// Payloads arrive in several shapes depending on how the phone feature is wired
// on the IoTtalk side: a bare number, a direction label, a flat [alpha, beta, gamma]
// list or the same list wrapped once more. Decoding happens at the boundary into
// the closed Value union; Normalize then works on the union only.
package sample

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags a Value.
type Kind int

const (
	// Absent means the source had nothing new to hand out.
	Absent Kind = iota
	Scalar
	Label
	Vector
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Scalar:
		return "scalar"
	case Label:
		return "label"
	case Vector:
		return "vector"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is one raw sample. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Num   float64
	Text  string
	Items []Value
}

// None is the "no sample available" value.
func None() Value { return Value{Kind: Absent} }

// Num wraps a number.
func Num(f float64) Value { return Value{Kind: Scalar, Num: f} }

// Text wraps a string, usually a direction label.
func Text(s string) Value { return Value{Kind: Label, Text: s} }

// Vec builds a sequence from already built values.
func Vec(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: Vector, Items: items}
}

// Nums builds a flat numeric sequence.
func Nums(fs ...float64) Value {
	items := make([]Value, len(fs))
	for i, f := range fs {
		items[i] = Num(f)
	}
	return Value{Kind: Vector, Items: items}
}

// IsAbsent reports whether v carries no sample.
func (v Value) IsAbsent() bool { return v.Kind == Absent }

func (v Value) String() string {
	switch v.Kind {
	case Absent:
		return "<none>"
	case Scalar:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case Label:
		return strconv.Quote(v.Text)
	case Vector:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}
