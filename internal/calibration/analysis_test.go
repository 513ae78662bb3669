package calibration

import (
	"errors"
	"math"
	"strings"
	"testing"

	"tilt_control/internal/sample"
)

// recordsFor builds records for phase index i from values.
func recordsFor(i int, values ...float64) []Record {
	out := make([]Record, len(values))
	for k, v := range values {
		out[k] = Record{PhaseIndex: i, Phase: DefaultProtocol[i].Label, Value: v}
	}
	return out
}

func joinRecords(parts ...[]Record) []Record {
	var out []Record
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestAnalyze_SyntheticSession(t *testing.T) {
	records := joinRecords(
		recordsFor(0, 0, 0, 0, 0),
		recordsFor(1, 1, 3, 6, 6, 5),
		recordsFor(2, 0, 0),
		recordsFor(3, -1, -3, -6, -6, -5),
		recordsFor(4, 0),
	)
	res, err := Analyze(DefaultProtocol, records)
	if err != nil {
		t.Fatal(err)
	}
	if res.Baseline != 0 || res.MaxOffset != 6 {
		t.Fatalf("baseline/max = %v/%v", res.Baseline, res.MaxOffset)
	}
	if !res.HasSuggestion {
		t.Fatalf("expected a suggestion")
	}
	if math.Abs(res.SuggestedScaleFactor-10.0/6.0) > 1e-9 {
		t.Fatalf("scale = %v", res.SuggestedScaleFactor)
	}
	if math.Abs(res.SuggestedDeadZone-0.6) > 1e-9 {
		t.Fatalf("dead zone = %v", res.SuggestedDeadZone)
	}
	if !res.RightExceedsLeft {
		t.Fatalf("no inversion expected: right=%v left=%v", res.RightMean, res.LeftMean)
	}

	p, ok := res.Params()
	if !ok || p.Baseline != 0 || p.DeadZone != res.SuggestedDeadZone {
		t.Fatalf("params = %+v ok=%v", p, ok)
	}
	if !strings.Contains(res.ConfigSnippet(), "scale_factor: 1.67") {
		t.Fatalf("snippet:\n%s", res.ConfigSnippet())
	}
}

func TestAnalyze_SymmetricExtremes(t *testing.T) {
	records := joinRecords(
		recordsFor(0, -1, 0, 1),
		recordsFor(1, 4, 6),
		recordsFor(3, -6, -4),
	)
	res, err := Analyze(DefaultProtocol, records)
	if err != nil {
		t.Fatal(err)
	}
	if res.Baseline != 0 || res.MaxOffset != 6 || res.RightMean != 5 || res.LeftMean != -5 {
		t.Fatalf("result = %+v", res)
	}
	if math.Abs(res.SuggestedScaleFactor-1.667) > 1e-3 || math.Abs(res.SuggestedDeadZone-0.6) > 1e-9 {
		t.Fatalf("scale/dead zone = %v/%v", res.SuggestedScaleFactor, res.SuggestedDeadZone)
	}
	if !res.RightExceedsLeft {
		t.Fatalf("no inversion expected")
	}
}

func TestAnalyze_BaselineFromCenterOnly(t *testing.T) {
	records := joinRecords(
		recordsFor(0, -1, -1),
		recordsFor(1, 3),
		recordsFor(2, 50), // return phases do not move the baseline
		recordsFor(3, -4),
	)
	res, err := Analyze(DefaultProtocol, records)
	if err != nil {
		t.Fatal(err)
	}
	if res.Baseline != -1 {
		t.Fatalf("baseline = %v", res.Baseline)
	}
	if res.MaxOffset != 4 {
		t.Fatalf("max offset = %v", res.MaxOffset)
	}
}

func TestAnalyze_EmptyCenterUsesZeroBaseline(t *testing.T) {
	res, err := Analyze(DefaultProtocol, joinRecords(recordsFor(1, 2), recordsFor(3, -3)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Baseline != 0 || res.MaxOffset != 3 {
		t.Fatalf("baseline/max = %v/%v", res.Baseline, res.MaxOffset)
	}
}

func TestAnalyze_DivisionGuard(t *testing.T) {
	records := joinRecords(
		recordsFor(0, 2, 2),
		recordsFor(1, 2, 2),
		recordsFor(3, 2),
	)
	res, err := Analyze(DefaultProtocol, records)
	if err != nil {
		t.Fatal(err)
	}
	if res.HasSuggestion || res.MaxOffset != 0 {
		t.Fatalf("expected no suggestion, got %+v", res)
	}
	if math.IsInf(res.SuggestedScaleFactor, 0) || math.IsNaN(res.SuggestedScaleFactor) {
		t.Fatalf("scale must not be computed: %v", res.SuggestedScaleFactor)
	}
	if _, ok := res.Params(); ok {
		t.Fatalf("Params must report no suggestion")
	}
	if res.ConfigSnippet() != "" {
		t.Fatalf("snippet should be empty")
	}
}

func TestAnalyze_InvertedSensor(t *testing.T) {
	records := joinRecords(
		recordsFor(0, 0),
		recordsFor(1, -5, -6),
		recordsFor(3, 5, 6),
	)
	res, err := Analyze(DefaultProtocol, records)
	if err != nil {
		t.Fatal(err)
	}
	if res.RightExceedsLeft {
		t.Fatalf("expected inversion flag, right=%v left=%v", res.RightMean, res.LeftMean)
	}
	if !res.HasSuggestion || res.MaxOffset != 6 {
		t.Fatalf("suggestion still expected: %+v", res)
	}
}

func TestAnalyze_InsufficientData(t *testing.T) {
	cases := map[string][]Record{
		"nothing":    nil,
		"no left":    joinRecords(recordsFor(0, 0), recordsFor(1, 4)),
		"no right":   joinRecords(recordsFor(0, 0), recordsFor(3, -4)),
		"only extra": recordsFor(2, 1, 2, 3),
	}
	for name, records := range cases {
		if _, err := Analyze(DefaultProtocol, records); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestBuildReport_FormatAndDirections(t *testing.T) {
	records := []Record{
		{PhaseIndex: 0, Value: 0, Direction: "平躺"},
		{PhaseIndex: 1, Value: 5, Direction: "右傾"},
		{PhaseIndex: 1, Value: 5, Direction: "右傾"},
		{PhaseIndex: 1, Value: 0, Direction: "直立"},
		{PhaseIndex: 3, Value: -5, Direction: "左傾"},
	}
	rep := buildReport(DefaultProtocol, records, nil)
	if rep.Format != FormatDirection {
		t.Fatalf("format = %s", rep.Format)
	}
	if rep.Axes != nil {
		t.Fatalf("no axes expected")
	}
	if len(rep.RightDirections) != 2 || rep.RightDirections[0] != (DirectionCount{Label: "右傾", Count: 2}) {
		t.Fatalf("right directions = %+v", rep.RightDirections)
	}
	if len(rep.LeftDirections) != 1 || rep.LeftDirections[0].Label != "左傾" {
		t.Fatalf("left directions = %+v", rep.LeftDirections)
	}
	if rep.Result == nil || rep.Result.MaxOffset != 5 {
		t.Fatalf("result = %+v (%s)", rep.Result, rep.AnalysisError)
	}
}

func TestBuildReport_ThreeAxis(t *testing.T) {
	records := []Record{
		{PhaseIndex: 1, Value: 3, Axes: &sample.Axes{Alpha: 10, Beta: 1, Gamma: 3}},
		{PhaseIndex: 3, Value: -2, Axes: &sample.Axes{Alpha: 20, Beta: -1, Gamma: -2}},
	}
	rep := buildReport(DefaultProtocol, records, nil)
	if rep.Format != FormatThreeAxis {
		t.Fatalf("format = %s", rep.Format)
	}
	if rep.Axes == nil || rep.Axes.Gamma.Min != -2 || rep.Axes.Gamma.Max != 3 || rep.Axes.Alpha.Range != 10 {
		t.Fatalf("axes = %+v", rep.Axes)
	}
	if rep.Overall.Count != 2 {
		t.Fatalf("overall = %+v", rep.Overall)
	}
}

func TestBuildReport_NoData(t *testing.T) {
	rep := buildReport(DefaultProtocol, nil, nil)
	if rep.Format != FormatUnknown || rep.Result != nil || rep.AnalysisError == "" {
		t.Fatalf("unexpected report: %+v", rep)
	}
}
