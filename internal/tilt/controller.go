package tilt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"tilt_control/internal/logger"
	"tilt_control/internal/models"
	"tilt_control/internal/sample"
	"tilt_control/internal/source"
)

const (
	DefaultPollInterval = 20 * time.Millisecond // 50 Hz
	DefaultFaultBackoff = 1 * time.Second
)

// ErrStateClaimed is returned when a second controller tries to write a State.
var ErrStateClaimed = errors.New("tilt state already has a writer")

// Outcome classifies one poll tick.
type Outcome int

const (
	Applied  Outcome = iota // a value was normalized and published
	NoSample                // the source had nothing new; control zeroed
	Unusable                // the payload was unparseable; control zeroed
	Fault                   // the transport failed; control zeroed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NoSample:
		return "no_sample"
	case Unusable:
		return "unusable"
	case Fault:
		return "fault"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// EventRecorder receives signal and fault events. repository.EventRepo
// satisfies it.
type EventRecorder interface {
	Append(ctx context.Context, e models.Event) error
}

// Options tunes a Controller. Zero values fall back to the defaults.
type Options struct {
	Params       Params
	PollInterval time.Duration
	FaultBackoff time.Duration
	Clock        clock.Clock
	Logger       *logger.Logger
	Events       EventRecorder
}

// Controller polls a source and keeps State up to date. It is the only writer
// of its State.
type Controller struct {
	src      source.Source
	state    *State
	params   atomic.Pointer[Params]
	interval time.Duration
	backoff  time.Duration
	clock    clock.Clock
	log      *logger.Logger
	events   EventRecorder

	// signal is owned by the polling goroutine.
	signal bool
}

// NewController claims state for writing and returns a controller for src.
func NewController(src source.Source, state *State, opts Options) (*Controller, error) {
	if src == nil {
		return nil, errors.New("tilt: nil source")
	}
	if state == nil {
		return nil, errors.New("tilt: nil state")
	}
	p := opts.Params
	if p == (Params{}) {
		p = DefaultParams()
	}
	if err := ValidateParams(p); err != nil {
		return nil, err
	}
	if !state.claim() {
		return nil, ErrStateClaimed
	}

	c := &Controller{
		src:      src,
		state:    state,
		interval: opts.PollInterval,
		backoff:  opts.FaultBackoff,
		clock:    opts.Clock,
		log:      opts.Logger,
		events:   opts.Events,
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.backoff <= 0 {
		c.backoff = DefaultFaultBackoff
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	c.params.Store(&p)
	return c, nil
}

// State returns the cell this controller writes.
func (c *Controller) State() *State { return c.state }

// Tilt is the latest control value.
func (c *Controller) Tilt() float64 { return c.state.Tilt() }

// Params returns the tuning currently in effect.
func (c *Controller) Params() Params { return *c.params.Load() }

// SetParams swaps the tuning; the next tick uses it.
func (c *Controller) SetParams(p Params) error {
	if err := ValidateParams(p); err != nil {
		return err
	}
	c.params.Store(&p)
	return nil
}

// Step runs one poll tick. Only a transport fault returns an error; every
// outcome other than Applied leaves the control value at 0.
func (c *Controller) Step(ctx context.Context) (Outcome, error) {
	v, err := c.src.Fetch(ctx)
	if err != nil {
		c.state.store(0)
		if errors.Is(err, sample.ErrUnusable) {
			c.log.Debugw("tilt_sample_unusable", "err", err)
			return Unusable, nil
		}
		return Fault, err
	}
	if v.IsAbsent() {
		c.state.store(0)
		return NoSample, nil
	}

	r, err := sample.Normalize(v)
	if err != nil {
		c.state.store(0)
		c.log.Debugw("tilt_sample_unusable", "sample", v.String(), "err", err)
		return Unusable, nil
	}

	c.state.store(Apply(c.Params(), r.Value))
	return Applied, nil
}

// Run registers the source if needed and polls until ctx is cancelled.
// Transport faults are logged and retried after the backoff; nothing else
// stops the loop.
func (c *Controller) Run(ctx context.Context) {
	defer c.state.store(0)

	if reg, ok := c.src.(source.Registrar); ok {
		if err := reg.Register(ctx); err != nil {
			c.log.Warnw("tilt_register_aborted", "err", err)
			return
		}
		c.log.Infow("tilt_source_registered")
	}

	ticker := c.clock.Ticker(c.interval)
	defer ticker.Stop()

	c.log.Infow("tilt_controller_started", "interval", c.interval, "params", c.Params())
	for {
		select {
		case <-ctx.Done():
			c.log.Infow("tilt_controller_stopped")
			return
		case <-ticker.C:
			outcome, err := c.Step(ctx)
			if ctx.Err() != nil {
				continue
			}
			c.observe(ctx, outcome, err)
			if outcome == Fault && !c.sleep(ctx, c.backoff) {
				c.log.Infow("tilt_controller_stopped")
				return
			}
		}
	}
}

// observe logs faults and records signal transitions.
func (c *Controller) observe(ctx context.Context, outcome Outcome, err error) {
	if outcome == Fault {
		c.log.Warnw("tilt_transport_fault", "err", err, "backoff", c.backoff)
		c.record(ctx, models.EventTransportFault, "Transport fault; backing off", map[string]any{
			"err":        err.Error(),
			"backoff_ms": c.backoff.Milliseconds(),
		})
	}

	switch {
	case outcome == Applied && !c.signal:
		c.signal = true
		c.log.Infow("tilt_signal_acquired", "tilt", c.state.Tilt())
		c.record(ctx, models.EventSignalAcquired, "Tilt signal acquired", nil)
	case outcome != Applied && c.signal:
		c.signal = false
		c.log.Infow("tilt_signal_lost", "reason", outcome.String())
		c.record(ctx, models.EventSignalLost, "Tilt signal lost; control zeroed", map[string]any{
			"reason": outcome.String(),
		})
	}
}

func (c *Controller) record(ctx context.Context, typ, desc string, meta map[string]any) {
	if c.events == nil {
		return
	}
	ev := models.Event{
		OccurredAt:  c.clock.Now().UTC(),
		Type:        typ,
		Description: desc,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	if err := c.events.Append(ctx, ev); err != nil {
		c.log.Errorw("tilt_event_append_failed", "type", typ, "err", err)
	}
}

// sleep waits d on the controller clock; false means ctx ended first.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}
