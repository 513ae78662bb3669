package calibration

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"tilt_control/internal/logger"
	"tilt_control/internal/sample"
	"tilt_control/internal/source"
)

// DefaultPollInterval is the calibration sampling period (20 Hz).
const DefaultPollInterval = 50 * time.Millisecond

// waitHintEvery spaces the "still waiting" notices of a WaitForData session.
const waitHintEvery = 5 * time.Second

// Options configures a Session. Zero values fall back to the defaults.
type Options struct {
	Protocol     Protocol
	PollInterval time.Duration
	WindowSize   int
	// WaitForData keeps the session idle until the first usable sample
	// arrives, so the operator is not timed against a silent transport.
	WaitForData bool
	Clock       clock.Clock
	Logger      *logger.Logger
	Reporter    Reporter
	// SessionID overrides the generated id, letting reporters built
	// before the session share it.
	SessionID string
}

// Live is one usable sample as seen while a phase runs.
type Live struct {
	PhaseIndex int
	Phase      string
	Remaining  time.Duration
	Reading    sample.Reading
	Average    float64
}

// Session walks the operator through the protocol and records every usable
// sample. It is driven by one goroutine, either through Run or by calling
// Tick directly.
type Session struct {
	id       string
	src      source.Source
	proto    Protocol
	interval time.Duration
	wait     bool
	clock    clock.Clock
	log      *logger.Logger
	rep      Reporter

	window     *Window
	step       Step
	phaseStart time.Time
	startedAt  time.Time
	waitSince  time.Time
	waitHint   time.Time
	waitedFor  time.Duration
	finishedAt time.Time

	phaseValues []float64
	records     []Record
	summaries   []PhaseSummary
	unusable    int
	faults      int
	interrupted bool
}

// NewSession returns an idle session reading from src.
func NewSession(src source.Source, opts Options) (*Session, error) {
	if src == nil {
		return nil, errors.New("calibration: nil source")
	}
	proto := opts.Protocol
	if proto == nil {
		proto = DefaultProtocol
	}
	if err := proto.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		id:       opts.SessionID,
		src:      src,
		proto:    proto,
		interval: opts.PollInterval,
		wait:     opts.WaitForData,
		clock:    opts.Clock,
		log:      opts.Logger,
		rep:      opts.Reporter,
		window:   NewWindow(opts.WindowSize),
		step:     Idle,
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.rep == nil {
		s.rep = Reporters{}
	}
	return s, nil
}

// ID identifies the session in logs and events.
func (s *Session) ID() string { return s.id }

// Protocol returns the phases this session walks through.
func (s *Session) Protocol() Protocol { return s.proto }

// Step is the current FSM position.
func (s *Session) Step() Step { return s.step }

// Done reports whether every phase has elapsed.
func (s *Session) Done() bool { return s.step == s.proto.Complete() }

// Tick performs one sampling period at time now and returns the position
// afterwards.
func (s *Session) Tick(ctx context.Context, now time.Time) Step {
	if s.Done() || s.interrupted {
		return s.step
	}
	if s.step == Idle {
		if !s.wait {
			s.startedAt = now
			s.advance(now)
		} else {
			s.noteWaiting(now)
		}
	}

	v, err := s.src.Fetch(ctx)
	switch {
	case errors.Is(err, sample.ErrUnusable):
		s.unusable++
	case err != nil && ctx.Err() != nil:
		// shutting down; not a transport problem
	case err != nil:
		s.faults++
		s.log.Warnw("calibration_transport_fault", "session", s.id, "err", err)
		s.rep.Fault(err)
	case v.IsAbsent():
	default:
		s.accept(v, now)
	}

	if s.step != Idle && s.proto.Next(s.step, now.Sub(s.phaseStart)) != s.step {
		s.flushPhase(false)
		s.advance(now)
	}
	return s.step
}

// accept normalizes v and records it against the current phase.
func (s *Session) accept(v sample.Value, now time.Time) {
	r, err := sample.Normalize(v)
	if err != nil {
		s.unusable++
		return
	}
	if s.step == Idle {
		// first data while waiting
		s.waitedFor = now.Sub(s.waitSince)
		s.log.Infow("calibration_first_data", "session", s.id, "sample", v.String(), "elapsed", s.waitedFor)
		s.startedAt = now
		s.advance(now)
	}

	ph := s.proto[s.step]
	s.records = append(s.records, Record{
		Time:       now,
		Value:      r.Value,
		PhaseIndex: int(s.step),
		Phase:      ph.Label,
		Axes:       r.Axes,
		Direction:  r.Direction,
	})
	s.phaseValues = append(s.phaseValues, r.Value)
	s.window.Push(r.Value)

	remaining := ph.Duration - now.Sub(s.phaseStart)
	if remaining < 0 {
		remaining = 0
	}
	s.rep.Live(Live{
		PhaseIndex: int(s.step),
		Phase:      ph.Label,
		Remaining:  remaining,
		Reading:    r,
		Average:    s.window.Mean(),
	})
}

// noteWaiting tracks an idle WaitForData session and emits a notice every
// waitHintEvery.
func (s *Session) noteWaiting(now time.Time) {
	if s.waitSince.IsZero() {
		s.waitSince = now
		s.waitHint = now
		return
	}
	if now.Sub(s.waitHint) < waitHintEvery {
		return
	}
	s.waitHint = now
	elapsed := now.Sub(s.waitSince)
	s.log.Infow("calibration_still_waiting", "session", s.id, "elapsed", elapsed)
	s.rep.Waiting(elapsed)
}

// advance moves the FSM one position and announces the new phase.
func (s *Session) advance(now time.Time) {
	s.step = s.proto.Next(s.step, now.Sub(s.phaseStart))
	s.phaseStart = now
	if s.Done() {
		s.finishedAt = now
		s.log.Infow("calibration_complete", "session", s.id, "samples", len(s.records))
		return
	}
	ph := s.proto[s.step]
	s.log.Infow("calibration_phase_started", "session", s.id, "phase", ph.Label, "duration", ph.Duration)
	s.rep.PhaseStarted(int(s.step), ph)
}

func (s *Session) flushPhase(partial bool) {
	ph := s.proto[s.step]
	sum := PhaseSummary{
		Index:   int(s.step),
		Label:   ph.Label,
		Role:    ph.Role.String(),
		Stats:   ComputeStats(s.phaseValues),
		Partial: partial,
	}
	s.summaries = append(s.summaries, sum)
	s.phaseValues = s.phaseValues[:0]
	s.rep.PhaseDone(sum)
}

// Interrupt stops the session where it is. The running phase is flushed as
// partial and the report is marked interrupted.
func (s *Session) Interrupt(now time.Time) {
	if s.Done() || s.interrupted {
		return
	}
	s.interrupted = true
	s.finishedAt = now
	if s.step != Idle {
		s.flushPhase(true)
	}
	s.log.Warnw("calibration_interrupted", "session", s.id, "samples", len(s.records))
}

// Report assembles the current report. It is final once Done or Interrupt
// has been reached.
func (s *Session) Report() Report {
	rep := buildReport(s.proto, s.records, append([]PhaseSummary(nil), s.summaries...))
	rep.SessionID = s.id
	rep.StartedAt = s.startedAt
	rep.FinishedAt = s.finishedAt
	rep.Interrupted = s.interrupted
	rep.WaitedFor = s.waitedFor
	rep.Unusable = s.unusable
	rep.Faults = s.faults
	return rep
}

// Run registers the source if needed, then ticks on the session clock until
// the protocol completes or ctx is cancelled. The report is handed to the
// reporter and returned either way; the error is set only when registration
// was aborted.
func (s *Session) Run(ctx context.Context) (Report, error) {
	if reg, ok := s.src.(source.Registrar); ok {
		if err := reg.Register(ctx); err != nil {
			return Report{SessionID: s.id, Interrupted: true}, err
		}
	}

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	if s.wait {
		s.log.Infow("calibration_waiting_for_data", "session", s.id)
	}
	s.Tick(ctx, s.clock.Now())
	for !s.Done() {
		select {
		case <-ctx.Done():
			s.Interrupt(s.clock.Now())
			rep := s.Report()
			s.rep.Final(rep)
			return rep, nil
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}

	rep := s.Report()
	s.rep.Final(rep)
	return rep, nil
}
