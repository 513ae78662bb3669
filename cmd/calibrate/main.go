// Command calibrate walks an operator through the tilt calibration protocol
// and prints suggested tilt parameters.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"tilt_control/internal/calibration"
	"tilt_control/internal/config"
	"tilt_control/internal/logger"
	"tilt_control/internal/repository"
	"tilt_control/internal/repository/db"
	"tilt_control/internal/source"
)

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "", "config file (default configs/config.yml)")
		waitForData = pflag.Bool("wait-for-data", false, "start the first phase only once a usable sample arrives")
		liveEvery   = pflag.Int("live-every", 5, "print one live line per N samples")
		noEvents    = pflag.Bool("no-events", false, "do not write calibration events to the database")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := run(ctx, cfg, log, *waitForData, *liveEvery, !*noEvents)
	if err != nil {
		log.Fatalw("calibration failed", "err", err)
	}
	if rep.Result == nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, wait bool, liveEvery int, withEvents bool) (rep calibration.Report, err error) {
	clk := clock.New()
	src, err := source.FromConfig(cfg.Source, clk, log)
	if err != nil {
		return rep, fmt.Errorf("build source: %w", err)
	}
	if c, ok := src.(source.Closer); ok {
		defer closeWithWarning(log, "source", c)
	}

	id := uuid.NewString()
	reporters := calibration.Reporters{
		calibration.NewTextReporter(os.Stdout, len(calibration.DefaultProtocol), liveEvery),
	}
	if withEvents && cfg.DB.Path != "" {
		conn, derr := db.InitDB(cfg.DB.Path)
		if derr != nil {
			log.Warnw("calibration events disabled", "err", derr)
		} else {
			defer closeWithWarning(log, "event db", conn)
			reporters = append(reporters, calibration.NewEventReporter(ctx, repository.NewEventSQLite(conn), id, log.Named("calibration")))
		}
	}

	sess, err := calibration.NewSession(src, calibration.Options{
		PollInterval: cfg.Calibration.PollInterval,
		WindowSize:   cfg.Calibration.Window,
		WaitForData:  wait,
		Clock:        clk,
		Logger:       log.Named("calibration"),
		Reporter:     reporters,
		SessionID:    id,
	})
	if err != nil {
		return rep, err
	}

	log.Infow("calibration starting", "session", id, "source", cfg.Source.Kind)
	return sess.Run(ctx)
}

// closeWithWarning closes c after the report is ready. A failure is logged
// and does not change the outcome of the calibration.
func closeWithWarning(log *logger.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warnw("close failed", "what", what, "err", err)
	}
}
