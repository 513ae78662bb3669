package tilt

import "testing"

func TestMoveSpeed(t *testing.T) {
	cases := []struct {
		tilt float64
		want float64
	}{
		{0, 0},
		{0.3, 0},
		{-0.3, 0},
		{8, 7},
		{-8, -7},
		{10, 7},
		{-10, -7},
		{4.15, 3.5},
		{-4.15, -3.5},
	}
	for _, tc := range cases {
		if got := MoveSpeed(tc.tilt, DefaultMaxSpeed); !almostEqual(got, tc.want) {
			t.Errorf("MoveSpeed(%v) = %v, want %v", tc.tilt, got, tc.want)
		}
	}
}

func TestMoveSpeed_Monotonic(t *testing.T) {
	prev := 0.0
	for v := 0.0; v <= ClampLimit; v += 0.05 {
		got := MoveSpeed(v, 6)
		if got < prev {
			t.Fatalf("speed decreased at %v: %v < %v", v, got, prev)
		}
		prev = got
	}
}

func TestDirection(t *testing.T) {
	cases := map[float64]string{
		0:     DirectionCenter,
		0.3:   DirectionCenter,
		-0.29: DirectionCenter,
		0.31:  DirectionRight,
		-2:    DirectionLeft,
		10:    DirectionRight,
	}
	for in, want := range cases {
		if got := Direction(in); got != want {
			t.Errorf("Direction(%v) = %q, want %q", in, got, want)
		}
	}
}
