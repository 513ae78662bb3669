// Package calibration runs the guided tilt recording session and derives
// suggested controller parameters from it.
package calibration

import (
	"fmt"
	"time"
)

// Role says what a phase contributes to the analysis.
type Role int

const (
	RoleCenter Role = iota // reference level, source of the baseline
	RoleRight              // held at the right extreme
	RoleReturn             // settling back to level, reported only
	RoleLeft               // held at the left extreme
)

func (r Role) String() string {
	switch r {
	case RoleCenter:
		return "center"
	case RoleRight:
		return "right"
	case RoleReturn:
		return "return"
	case RoleLeft:
		return "left"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Phase is one timed instruction shown to the operator.
type Phase struct {
	Label    string        `json:"label"`
	Role     Role          `json:"role"`
	Duration time.Duration `json:"duration"`
}

// Protocol is the ordered list of phases of a session.
type Protocol []Phase

// DefaultProtocol is the five-phase sequence used by the calibrate tool.
var DefaultProtocol = Protocol{
	{Label: "hold-center", Role: RoleCenter, Duration: 5 * time.Second},
	{Label: "tilt-right-max", Role: RoleRight, Duration: 8 * time.Second},
	{Label: "return-center", Role: RoleReturn, Duration: 3 * time.Second},
	{Label: "tilt-left-max", Role: RoleLeft, Duration: 8 * time.Second},
	{Label: "return-center", Role: RoleReturn, Duration: 3 * time.Second},
}

// Step is the FSM position: Idle, a phase index, or Complete.
type Step int

// Idle is the position before the first phase starts.
const Idle Step = -1

// Complete is the terminal position of p.
func (p Protocol) Complete() Step { return Step(len(p)) }

// Total is the sum of all phase durations.
func (p Protocol) Total() time.Duration {
	var d time.Duration
	for _, ph := range p {
		d += ph.Duration
	}
	return d
}

// Validate rejects an empty protocol, non-positive durations and a protocol
// without both extreme phases.
func (p Protocol) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("calibration protocol has no phases")
	}
	var right, left bool
	for i, ph := range p {
		if ph.Duration <= 0 {
			return fmt.Errorf("phase %d (%s): duration must be > 0", i, ph.Label)
		}
		right = right || ph.Role == RoleRight
		left = left || ph.Role == RoleLeft
	}
	if !right || !left {
		return fmt.Errorf("calibration protocol needs a right and a left phase")
	}
	return nil
}

// Next returns the position after s given the time spent in s. It moves at
// most one position per call: Idle starts the first phase, a phase whose
// duration has elapsed hands over to the following one, Complete stays put.
func (p Protocol) Next(s Step, elapsed time.Duration) Step {
	switch {
	case s == Idle:
		return 0
	case s < 0 || s >= p.Complete():
		return p.Complete()
	case elapsed >= p[s].Duration:
		return s + 1
	default:
		return s
	}
}
