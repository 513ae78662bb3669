// Command tiltd polls the phone-tilt source and serves the conditioned
// control value over HTTP and WebSocket.
//
// @title                       tilt_control API
// @version                     1.0
// @description                 Live tilt control value, runtime tuning and event history.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"tilt_control/internal/config"
	"tilt_control/internal/handlers"
	"tilt_control/internal/logger"
	"tilt_control/internal/repository"
	"tilt_control/internal/repository/db"
	"tilt_control/internal/server"
	"tilt_control/internal/service"
	"tilt_control/internal/source"
	"tilt_control/internal/tilt"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath   = pflag.StringP("config", "c", "", "config file (default configs/config.yml)")
		hashPassword = pflag.String("hash-password", "", "print the bcrypt hash for an operator password and exit")
	)
	pflag.Parse()

	if *hashPassword != "" {
		hash, err := service.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalw("tiltd stopped with error", "err", err)
	}
	log.Infow("tiltd stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) (err error) {
	conn, err := openDB(cfg.DB.Path, log)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() { err = multierr.Append(err, conn.Close()) }()
	repos := repository.NewRepository(conn)

	clk := clock.New()
	src, err := source.FromConfig(cfg.Source, clk, log)
	if err != nil {
		return fmt.Errorf("build source: %w", err)
	}
	if c, ok := src.(source.Closer); ok {
		defer func() { err = multierr.Append(err, c.Close()) }()
	}

	ctrl, err := tilt.NewController(src, tilt.NewState(), tilt.Options{
		Params:       cfg.Tilt.Params(),
		PollInterval: cfg.Tilt.PollInterval,
		FaultBackoff: cfg.Tilt.FaultBackoff,
		Clock:        clk,
		Logger:       log.Named("tilt"),
		Events:       repos.EventRepo,
	})
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}

	services := service.NewService(repos, ctrl, service.AuthConfig{
		Secret:       cfg.Auth.Secret,
		TokenTTL:     cfg.Auth.TokenTTL,
		PasswordHash: cfg.Auth.OperatorPasswordHash,
	}, cfg.Tilt.MaxSpeed)
	if cfg.Auth.OperatorPasswordHash == "" || cfg.Auth.Secret == "" {
		log.Warnw("operator sign-in disabled; PUT /api/v1/params is unreachable")
	}
	srv := server.New(cfg.Server.Port, handlers.NewHandler(services, log).InitRoutes())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ctrl.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Infow("http server listening", "addr", srv.Addr(), "source", cfg.Source.Kind)
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down server...")

		// allow in-flight requests to complete
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// openDB initializes the SQLite event log.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "tilt.db")
		path = "tilt.db"
	}
	return db.InitDB(path)
}
