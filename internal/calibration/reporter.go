package calibration

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"tilt_control/internal/logger"
	"tilt_control/internal/models"
)

// Reporter receives the session's progress. Calls come from the goroutine
// driving the session.
type Reporter interface {
	// Waiting is called periodically while the session waits for its first
	// usable sample.
	Waiting(elapsed time.Duration)
	PhaseStarted(index int, p Phase)
	Live(l Live)
	PhaseDone(s PhaseSummary)
	Fault(err error)
	Final(r Report)
}

// Reporters fans every call out to each element in order.
type Reporters []Reporter

func (rs Reporters) Waiting(elapsed time.Duration) {
	for _, r := range rs {
		r.Waiting(elapsed)
	}
}

func (rs Reporters) PhaseStarted(index int, p Phase) {
	for _, r := range rs {
		r.PhaseStarted(index, p)
	}
}

func (rs Reporters) Live(l Live) {
	for _, r := range rs {
		r.Live(l)
	}
}

func (rs Reporters) PhaseDone(s PhaseSummary) {
	for _, r := range rs {
		r.PhaseDone(s)
	}
}

func (rs Reporters) Fault(err error) {
	for _, r := range rs {
		r.Fault(err)
	}
}

func (rs Reporters) Final(rep Report) {
	for _, r := range rs {
		r.Final(rep)
	}
}

// TextReporter prints operator instructions and results to a console.
type TextReporter struct {
	w     io.Writer
	total int
	// liveEvery prints one live line per liveEvery samples.
	liveEvery int
	seen      int
}

// NewTextReporter writes to w. phases is the protocol length used in the
// "phase i/n" headers; liveEvery < 1 prints every sample.
func NewTextReporter(w io.Writer, phases, liveEvery int) *TextReporter {
	if liveEvery < 1 {
		liveEvery = 1
	}
	return &TextReporter{w: w, total: phases, liveEvery: liveEvery}
}

func (t *TextReporter) Waiting(elapsed time.Duration) {
	fmt.Fprintf(t.w, "  ... still waiting for data (%s). Is the phone app open and sending?\n", elapsed.Truncate(time.Second))
}

func (t *TextReporter) PhaseStarted(index int, p Phase) {
	t.seen = 0
	fmt.Fprintf(t.w, "\n=== Phase %d/%d: %s (%s) ===\n", index+1, t.total, p.Label, p.Duration)
	fmt.Fprintln(t.w, instruction(p.Role))
}

func (t *TextReporter) Live(l Live) {
	t.seen++
	if (t.seen-1)%t.liveEvery != 0 {
		return
	}
	line := fmt.Sprintf("  [%4.1fs] value=%7.2f avg=%7.2f", l.Remaining.Seconds(), l.Reading.Value, l.Average)
	if a := l.Reading.Axes; a != nil {
		line += fmt.Sprintf(" (alpha=%.1f beta=%.1f gamma=%.1f)", a.Alpha, a.Beta, a.Gamma)
	}
	if l.Reading.Direction != "" {
		line += " dir=" + l.Reading.Direction
	}
	fmt.Fprintln(t.w, line)
}

func (t *TextReporter) PhaseDone(s PhaseSummary) {
	suffix := ""
	if s.Partial {
		suffix = " (interrupted)"
	}
	fmt.Fprintf(t.w, "--- %s done%s: %s\n", s.Label, suffix, formatStats(s.Stats))
}

func (t *TextReporter) Fault(err error) {
	fmt.Fprintf(t.w, "  ! read failed: %v\n", err)
}

func (t *TextReporter) Final(r Report) {
	w := t.w
	fmt.Fprintln(w, "\n=== Calibration report ===")
	if r.Interrupted {
		fmt.Fprintln(w, "Session interrupted; results cover the recorded data only.")
	}
	if r.WaitedFor > 0 {
		fmt.Fprintf(w, "Waited %s for the first sample.\n", r.WaitedFor.Truncate(time.Millisecond))
	}
	fmt.Fprintf(w, "Samples: %d (unusable %d, read faults %d)\n", r.Samples, r.Unusable, r.Faults)
	fmt.Fprintf(w, "Data format: %s\n", r.Format)

	fmt.Fprintln(w, "\nPer phase:")
	for _, p := range r.Phases {
		fmt.Fprintf(w, "  %d. %-15s %s\n", p.Index+1, p.Label, formatStats(p.Stats))
	}
	fmt.Fprintf(w, "Overall: %s\n", formatStats(r.Overall))

	if a := r.Axes; a != nil {
		fmt.Fprintln(w, "\nAxis ranges:")
		fmt.Fprintf(w, "  alpha: %.2f .. %.2f\n", a.Alpha.Min, a.Alpha.Max)
		fmt.Fprintf(w, "  beta:  %.2f .. %.2f\n", a.Beta.Min, a.Beta.Max)
		fmt.Fprintf(w, "  gamma: %.2f .. %.2f\n", a.Gamma.Min, a.Gamma.Max)
	}
	if len(r.Directions) > 0 {
		fmt.Fprintf(w, "\nDirections: %s\n", formatDirections(r.Directions))
		fmt.Fprintf(w, "  right phase: %s\n", formatDirections(r.RightDirections))
		fmt.Fprintf(w, "  left phase:  %s\n", formatDirections(r.LeftDirections))
	}

	fmt.Fprintln(w)
	if r.Result == nil {
		fmt.Fprintf(w, "No suggestion: %s\n", r.AnalysisError)
		return
	}
	res := r.Result
	fmt.Fprintf(w, "Baseline:   %.3f\n", res.Baseline)
	fmt.Fprintf(w, "Max offset: %.3f\n", res.MaxOffset)
	fmt.Fprintf(w, "Right mean: %.3f  Left mean: %.3f\n", res.RightMean, res.LeftMean)
	if !res.RightExceedsLeft {
		fmt.Fprintln(w, "WARNING: right tilt does not read higher than left tilt; the sensor sign may be inverted.")
	}
	if !res.HasSuggestion {
		fmt.Fprintln(w, "No suggestion: the extreme phases never left the baseline.")
		return
	}
	fmt.Fprintf(w, "Suggested dead zone:    %.3f\n", res.SuggestedDeadZone)
	fmt.Fprintf(w, "Suggested scale factor: %.3f\n", res.SuggestedScaleFactor)
	fmt.Fprintln(w, "\nSuggested config:")
	fmt.Fprint(w, res.ConfigSnippet())
}

func instruction(r Role) string {
	switch r {
	case RoleCenter:
		return "Hold the phone level and keep it still."
	case RoleRight:
		return "Tilt the phone to the right as far as you would in play and hold it."
	case RoleLeft:
		return "Tilt the phone to the left as far as you would in play and hold it."
	default:
		return "Bring the phone back to level."
	}
}

func formatStats(s PhaseStats) string {
	if s.Count == 0 {
		return "no data"
	}
	sd := "n/a"
	if s.HasStdDev {
		sd = fmt.Sprintf("%.3f", s.StdDev)
	}
	return fmt.Sprintf("n=%d min=%.3f max=%.3f mean=%.3f median=%.3f stdev=%s range=%.3f",
		s.Count, s.Min, s.Max, s.Mean, s.Median, sd, s.Range)
}

func formatDirections(dc []DirectionCount) string {
	if len(dc) == 0 {
		return "none"
	}
	parts := make([]string, len(dc))
	for i, d := range dc {
		parts[i] = fmt.Sprintf("%s=%d", d.Label, d.Count)
	}
	return strings.Join(parts, " ")
}

// EventRecorder stores calibration events. repository.EventRepo satisfies it.
type EventRecorder interface {
	Append(ctx context.Context, e models.Event) error
}

// EventReporter writes phase summaries, the first fault of each phase and the
// final result to the event log.
type EventReporter struct {
	ctx       context.Context
	events    EventRecorder
	sessionID string
	log       *logger.Logger

	mu          sync.Mutex
	phase       int
	faultLogged bool
}

// NewEventReporter records under sessionID. Writes outlive cancellation of
// ctx so the final event of an interrupted session still lands.
func NewEventReporter(ctx context.Context, events EventRecorder, sessionID string, log *logger.Logger) *EventReporter {
	if log == nil {
		log = logger.Nop()
	}
	return &EventReporter{
		ctx:       context.WithoutCancel(ctx),
		events:    events,
		sessionID: sessionID,
		log:       log,
	}
}

func (e *EventReporter) PhaseStarted(index int, _ Phase) {
	e.mu.Lock()
	e.phase = index
	e.faultLogged = false
	e.mu.Unlock()
}

func (e *EventReporter) Live(Live) {}

func (e *EventReporter) Waiting(time.Duration) {}

func (e *EventReporter) PhaseDone(s PhaseSummary) {
	e.append(models.EventCalibrationPhase, fmt.Sprintf("Phase %s recorded %d samples", s.Label, s.Stats.Count), map[string]any{
		"session_id": e.sessionID,
		"phase":      s,
	})
}

func (e *EventReporter) Fault(err error) {
	e.mu.Lock()
	if e.faultLogged {
		e.mu.Unlock()
		return
	}
	e.faultLogged = true
	phase := e.phase
	e.mu.Unlock()

	e.append(models.EventCalibrationFault, "Calibration read failed", map[string]any{
		"session_id":  e.sessionID,
		"phase_index": phase,
		"err":         err.Error(),
	})
}

func (e *EventReporter) Final(r Report) {
	meta := map[string]any{
		"session_id":  e.sessionID,
		"interrupted": r.Interrupted,
		"samples":     r.Samples,
	}
	if r.Result == nil {
		meta["reason"] = r.AnalysisError
		e.append(models.EventCalibrationIncomplete, "Calibration produced no result", meta)
		return
	}
	meta["result"] = r.Result
	e.append(models.EventCalibrationResult, "Calibration result computed", meta)
}

func (e *EventReporter) append(typ, desc string, meta map[string]any) {
	ev := models.Event{Type: typ, Description: desc, Metadata: meta}
	if err := e.events.Append(e.ctx, ev); err != nil {
		e.log.Errorw("calibration_event_append_failed", "type", typ, "err", err)
	}
}
