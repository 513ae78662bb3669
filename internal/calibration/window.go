package calibration

import "github.com/montanaflynn/stats"

// DefaultWindowSize is the length of the live moving average.
const DefaultWindowSize = 10

// Window keeps the last N values for the live moving average. Oldest values
// are overwritten first.
type Window struct {
	buf  []float64
	next int
	full bool
}

// NewWindow returns a window holding up to size values; size < 1 uses the
// default.
func NewWindow(size int) *Window {
	if size < 1 {
		size = DefaultWindowSize
	}
	return &Window{buf: make([]float64, 0, size)}
}

// Push adds v, evicting the oldest value when full.
func (w *Window) Push(v float64) {
	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == cap(w.buf) {
			w.full = true
		}
		return
	}
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
}

// Len is the number of values held.
func (w *Window) Len() int { return len(w.buf) }

// Mean is the average of the held values, 0 when empty.
func (w *Window) Mean() float64 {
	m, err := stats.Mean(w.buf)
	if err != nil {
		return 0
	}
	return m
}
