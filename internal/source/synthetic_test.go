package source

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"tilt_control/internal/sample"
)

func TestSynthetic_SwingsWithinAmplitude(t *testing.T) {
	mock := clock.NewMock()
	s := NewSynthetic(mock, 6, 4*time.Second)
	ctx := context.Background()

	var lo, hi float64
	for i := 0; i < 400; i++ {
		v, err := s.Fetch(ctx)
		if err != nil {
			t.Fatal(err)
		}
		r, err := sample.Normalize(v)
		if err != nil || r.Axes == nil {
			t.Fatalf("reading = (%+v, %v)", r, err)
		}
		lo, hi = math.Min(lo, r.Value), math.Max(hi, r.Value)
		mock.Add(10 * time.Millisecond)
	}
	if hi > 6+1e-9 || lo < -6-1e-9 {
		t.Fatalf("out of range: [%v, %v]", lo, hi)
	}
	if hi < 5.9 || lo > -5.9 {
		t.Fatalf("never reached the extremes: [%v, %v]", lo, hi)
	}

	// quarter period: peak right
	s = NewSynthetic(mock, 6, 4*time.Second)
	mock.Add(time.Second)
	v, _ := s.Fetch(ctx)
	if r, _ := sample.Normalize(v); math.Abs(r.Value-6) > 1e-9 {
		t.Fatalf("quarter period value = %v", r.Value)
	}
}
