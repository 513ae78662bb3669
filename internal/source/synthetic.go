package source

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"tilt_control/internal/sample"
)

// Synthetic produces a three-axis reading whose roll axis swings smoothly
// between -Amplitude and +Amplitude. Useful without a phone attached.
type Synthetic struct {
	Amplitude float64
	Period    time.Duration
	Offset    float64

	clock clock.Clock
	start time.Time
}

// NewSynthetic starts the wave at the current time of clk (wall clock when nil).
func NewSynthetic(clk clock.Clock, amplitude float64, period time.Duration) *Synthetic {
	if clk == nil {
		clk = clock.New()
	}
	if period <= 0 {
		period = 6 * time.Second
	}
	return &Synthetic{Amplitude: amplitude, Period: period, clock: clk, start: clk.Now()}
}

// Fetch never fails.
func (s *Synthetic) Fetch(ctx context.Context) (sample.Value, error) {
	elapsed := s.clock.Since(s.start).Seconds()
	phase := 2 * math.Pi * elapsed / s.Period.Seconds()

	return sample.Nums(
		math.Mod(elapsed*30, 360),
		15*math.Cos(phase*0.7),
		s.Offset+s.Amplitude*math.Sin(phase),
	), nil
}
