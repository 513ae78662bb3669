package tilt

import "go.uber.org/atomic"

// State holds the current control value. It starts at 0.0, is written by
// exactly one Controller (the one that claimed it) and may be read from any
// goroutine without locking.
type State struct {
	v     atomic.Float64
	owned atomic.Bool
}

// NewState returns a zeroed control value.
func NewState() *State { return &State{} }

// Tilt returns the latest control value in [-ClampLimit, ClampLimit].
func (s *State) Tilt() float64 { return s.v.Load() }

// claim reserves the write side. Only the first caller wins.
func (s *State) claim() bool { return s.owned.CompareAndSwap(false, true) }

// store publishes v in a single atomic write.
func (s *State) store(v float64) { s.v.Store(v) }
