package calibration

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"tilt_control/internal/sample"
	"tilt_control/internal/tilt"
)

// DeadZoneRatio is the share of the measured range suggested as dead zone.
const DeadZoneRatio = 0.1

// ErrInsufficientData is returned by Analyze when an extreme phase recorded
// nothing.
var ErrInsufficientData = errors.New("insufficient calibration data")

// Record is one usable sample captured during a phase.
type Record struct {
	Time       time.Time    `json:"time"`
	Value      float64      `json:"value"`
	PhaseIndex int          `json:"phase_index"`
	Phase      string       `json:"phase"`
	Axes       *sample.Axes `json:"axes,omitempty"`
	Direction  string       `json:"direction,omitempty"`
}

// Result holds the suggested controller tuning.
type Result struct {
	Baseline  float64 `json:"baseline"`
	MaxOffset float64 `json:"max_offset"`

	// Suggestions are only meaningful when HasSuggestion is true; a zero
	// MaxOffset leaves nothing to scale against.
	SuggestedDeadZone    float64 `json:"suggested_dead_zone"`
	SuggestedScaleFactor float64 `json:"suggested_scale_factor"`
	HasSuggestion        bool    `json:"has_suggestion"`

	RightMean float64 `json:"right_mean"`
	LeftMean  float64 `json:"left_mean"`
	// RightExceedsLeft false hints that the sensor sign is inverted.
	RightExceedsLeft bool `json:"right_exceeds_left"`
}

// Params returns the suggestion as controller params.
func (r Result) Params() (tilt.Params, bool) {
	if !r.HasSuggestion {
		return tilt.Params{}, false
	}
	return tilt.Params{
		Baseline:    r.Baseline,
		DeadZone:    r.SuggestedDeadZone,
		ScaleFactor: r.SuggestedScaleFactor,
	}, true
}

// ConfigSnippet renders the suggestion as a tilt config block.
func (r Result) ConfigSnippet() string {
	if !r.HasSuggestion {
		return ""
	}
	var b strings.Builder
	b.WriteString("tilt:\n")
	fmt.Fprintf(&b, "  baseline: %.2f\n", r.Baseline)
	fmt.Fprintf(&b, "  dead_zone: %.2f\n", r.SuggestedDeadZone)
	fmt.Fprintf(&b, "  scale_factor: %.2f\n", r.SuggestedScaleFactor)
	return b.String()
}

// Analyze derives the tuning from records of protocol p. The baseline is the
// mean of the center phase (0 if it is empty); both extreme phases must have
// data.
func Analyze(p Protocol, records []Record) (Result, error) {
	byRole := valuesByRole(p, records)
	right, left := byRole[RoleRight], byRole[RoleLeft]
	if len(right) == 0 || len(left) == 0 {
		return Result{}, fmt.Errorf("%w: right=%d left=%d samples", ErrInsufficientData, len(right), len(left))
	}

	var res Result
	if center := byRole[RoleCenter]; len(center) > 0 {
		res.Baseline, _ = stats.Mean(center)
	}
	for _, vs := range [][]float64{right, left} {
		for _, v := range vs {
			res.MaxOffset = math.Max(res.MaxOffset, math.Abs(v-res.Baseline))
		}
	}
	if res.MaxOffset > 0 {
		res.HasSuggestion = true
		res.SuggestedScaleFactor = tilt.ClampLimit / res.MaxOffset
		res.SuggestedDeadZone = DeadZoneRatio * res.MaxOffset
	}

	res.RightMean, _ = stats.Mean(right)
	res.LeftMean, _ = stats.Mean(left)
	res.RightExceedsLeft = res.RightMean > res.LeftMean
	return res, nil
}

// valuesByRole groups record values by the role of their phase. Only the
// first center phase counts as the reference level.
func valuesByRole(p Protocol, records []Record) map[Role][]float64 {
	firstCenter := -1
	for i, ph := range p {
		if ph.Role == RoleCenter {
			firstCenter = i
			break
		}
	}
	out := make(map[Role][]float64)
	for _, r := range records {
		if r.PhaseIndex < 0 || r.PhaseIndex >= len(p) {
			continue
		}
		role := p[r.PhaseIndex].Role
		if role == RoleCenter && r.PhaseIndex != firstCenter {
			continue
		}
		out[role] = append(out[role], r.Value)
	}
	return out
}

// Format is the payload shape observed during the session.
type Format string

const (
	FormatUnknown   Format = "unknown"
	FormatThreeAxis Format = "three_axis"
	FormatDirection Format = "direction_label"
	FormatSingle    Format = "single_value"
)

// classifyFormat reports the shape of the first record.
func classifyFormat(records []Record) Format {
	if len(records) == 0 {
		return FormatUnknown
	}
	switch r := records[0]; {
	case r.Axes != nil:
		return FormatThreeAxis
	case r.Direction != "":
		return FormatDirection
	default:
		return FormatSingle
	}
}

// AxisRanges holds per-axis statistics for three-axis payloads.
type AxisRanges struct {
	Alpha PhaseStats `json:"alpha"`
	Beta  PhaseStats `json:"beta"`
	Gamma PhaseStats `json:"gamma"`
}

func axisRanges(records []Record) *AxisRanges {
	var a, b, g []float64
	for _, r := range records {
		if r.Axes == nil {
			continue
		}
		a = append(a, r.Axes.Alpha)
		b = append(b, r.Axes.Beta)
		g = append(g, r.Axes.Gamma)
	}
	if len(g) == 0 {
		return nil
	}
	return &AxisRanges{Alpha: ComputeStats(a), Beta: ComputeStats(b), Gamma: ComputeStats(g)}
}

// DirectionCount is how often a direction label was seen.
type DirectionCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// countDirections tallies labels of records accepted by keep, most frequent
// first.
func countDirections(records []Record, keep func(Record) bool) []DirectionCount {
	counts := make(map[string]int)
	for _, r := range records {
		if r.Direction == "" || !keep(r) {
			continue
		}
		counts[r.Direction]++
	}
	out := make([]DirectionCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, DirectionCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
