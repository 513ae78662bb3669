// Package source adapts the remote telemetry session layer to the pull-style
// Fetch contract used by the tilt controller and the calibration session.
package source

import (
	"context"
	"errors"

	"tilt_control/internal/sample"
)

// ErrTransport wraps every registration or fetch failure raised by a transport.
var ErrTransport = errors.New("transport fault")

// Source hands out the next raw sample. An Absent value means nothing new is
// ready. Payloads that cannot be decoded come back as errors wrapping
// sample.ErrUnusable; anything else is a transport fault.
type Source interface {
	Fetch(ctx context.Context) (sample.Value, error)
}

// Registrar is implemented by sources that must register the device before
// the first fetch. Register blocks, retrying, until it succeeds or ctx ends.
type Registrar interface {
	Register(ctx context.Context) error
}

// Closer is implemented by sources holding a connection.
type Closer interface {
	Close() error
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context) (sample.Value, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context) (sample.Value, error) { return f(ctx) }
