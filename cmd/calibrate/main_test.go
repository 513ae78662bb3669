package main

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tilt_control/internal/logger"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseWithWarning(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	closeWithWarning(log, "source", closerFunc(func() error { return nil }))
	if logs.Len() != 0 {
		t.Fatalf("clean close logged %d entries", logs.Len())
	}

	closeWithWarning(log, "source", closerFunc(func() error { return errors.New("deregister: 503") }))
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if e := entries[0]; e.Level != zapcore.WarnLevel || e.ContextMap()["what"] != "source" {
		t.Fatalf("entry = %+v", e)
	}
}
