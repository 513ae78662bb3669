package calibration

import "time"

// PhaseSummary is the flushed outcome of one phase.
type PhaseSummary struct {
	Index int        `json:"index"`
	Label string     `json:"label"`
	Role  string     `json:"role"`
	Stats PhaseStats `json:"stats"`
	// Partial is set when the session was interrupted inside the phase.
	Partial bool `json:"partial,omitempty"`
}

// Report is everything a session recorded plus the derived tuning.
type Report struct {
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Interrupted bool      `json:"interrupted"`
	// WaitedFor is how long a WaitForData session idled before its first
	// usable sample.
	WaitedFor time.Duration `json:"waited_for,omitempty"`

	Phases  []PhaseSummary `json:"phases"`
	Overall PhaseStats     `json:"overall"`
	Format  Format         `json:"format"`
	Axes    *AxisRanges    `json:"axes,omitempty"`

	Directions      []DirectionCount `json:"directions,omitempty"`
	RightDirections []DirectionCount `json:"right_directions,omitempty"`
	LeftDirections  []DirectionCount `json:"left_directions,omitempty"`

	Samples  int `json:"samples"`
	Unusable int `json:"unusable"`
	Faults   int `json:"faults"`

	// Result is nil when the extreme phases did not record enough data;
	// AnalysisError then says why.
	Result        *Result `json:"result,omitempty"`
	AnalysisError string  `json:"analysis_error,omitempty"`
}

// buildReport assembles the final report from the session buffers.
func buildReport(p Protocol, records []Record, phases []PhaseSummary) Report {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Value
	}
	roleOf := func(r Record) Role {
		if r.PhaseIndex < 0 || r.PhaseIndex >= len(p) {
			return -1
		}
		return p[r.PhaseIndex].Role
	}

	rep := Report{
		Phases:     phases,
		Overall:    ComputeStats(values),
		Format:     classifyFormat(records),
		Axes:       axisRanges(records),
		Directions: countDirections(records, func(Record) bool { return true }),
		RightDirections: countDirections(records, func(r Record) bool {
			return roleOf(r) == RoleRight
		}),
		LeftDirections: countDirections(records, func(r Record) bool {
			return roleOf(r) == RoleLeft
		}),
		Samples: len(records),
	}

	res, err := Analyze(p, records)
	if err != nil {
		rep.AnalysisError = err.Error()
	} else {
		rep.Result = &res
	}
	return rep
}
