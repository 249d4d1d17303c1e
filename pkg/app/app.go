// Package app wires configuration, logging, telemetry and the worker
// components behind the worker binary's commands.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/cineplexx-rss/internal/cache"
	"github.com/flemzord/cineplexx-rss/internal/config"
	"github.com/flemzord/cineplexx-rss/internal/gateway"
	"github.com/flemzord/cineplexx-rss/internal/metrics"
	"github.com/flemzord/cineplexx-rss/internal/pipeline"
	"github.com/flemzord/cineplexx-rss/internal/scrape"
	"github.com/flemzord/cineplexx-rss/internal/security"
	"github.com/flemzord/cineplexx-rss/internal/state"
	"github.com/flemzord/cineplexx-rss/internal/telemetry"
	"github.com/flemzord/cineplexx-rss/internal/worker"
)

// Params configures an App.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is consulted.
	ConfigPath string

	// Version is injected at build time via ldflags.
	Version string

	// Stdout receives the loop marker lines, Stderr the logs.
	Stdout io.Writer
	Stderr io.Writer

	// Lookup reads environment variables. Defaults to os.LookupEnv.
	Lookup config.LookupFunc
}

// App holds the long-lived components shared by the commands.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	stdout   io.Writer
	registry *prometheus.Registry
	tracker  *gateway.Tracker
	fetcher  *scrape.Fetcher
	cache    cache.Cache

	shutdownTelemetry telemetry.ShutdownFunc
}

// New loads the configuration and builds the shared components. The cache
// connection is attempted here and degrades to no cache.
func New(ctx context.Context, p Params) (*App, error) {
	if p.Stdout == nil {
		p.Stdout = os.Stdout
	}
	if p.Stderr == nil {
		p.Stderr = os.Stderr
	}

	bootLogger := security.NewLogger(p.Stderr, "info", security.NewRedactor())
	cfg, err := LoadConfig(p.ConfigPath, p.Lookup, bootLogger)
	if err != nil {
		return nil, err
	}

	logger := security.NewLogger(p.Stderr, cfg.Log.Level, newRedactor(cfg))

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     p.Version,
	})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	return &App{
		Config:            cfg,
		Logger:            logger,
		stdout:            p.Stdout,
		registry:          registry,
		tracker:           gateway.NewTracker(),
		fetcher:           scrape.NewFetcher(logger),
		cache:             cache.New(ctx, cfg.Cache, logger),
		shutdownTelemetry: shutdown,
	}, nil
}

// Close releases the cache and flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.cache.Close(), a.shutdownTelemetry(ctx))
}

// RunOnce performs one feed build and records its status.
func (a *App) RunOnce(ctx context.Context) error {
	store, err := state.Open(a.Config.Output.StateBackend, a.Config.StatePath(), a.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			a.Logger.Warn("state close failed", "error", cerr)
		}
	}()

	rep, err := pipeline.Run(ctx, pipeline.Deps{
		Config: a.Config,
		Getter: a.fetcher,
		Cache:  a.cache,
		Store:  store,
		Logger: a.Logger,
	})
	if !rep.Status.StartedAt.IsZero() {
		a.tracker.Record(rep.Status)
	}
	return err
}

// Runner returns the unit of work for the loop: the configured external
// command, or the in-process feed build.
func (a *App) Runner() (worker.Runner, error) {
	if a.Config.Worker.Command != "" {
		return worker.NewExecRunner(a.Config.Worker.Command)
	}
	return worker.RunnerFunc(a.RunOnce), nil
}

// RunLoop runs the scheduler loop, with the gateway alongside when an
// address is configured.
func (a *App) RunLoop(ctx context.Context) error {
	runner, err := a.Runner()
	if err != nil {
		return err
	}
	schedule, err := worker.ParseSchedule(a.Config.Worker.Cron)
	if err != nil {
		return err
	}
	loop, err := worker.New(worker.Config{
		IntervalMinutes: a.Config.Worker.IntervalMinutes,
		Schedule:        schedule,
		Runner:          runner,
		Out:             a.stdout,
		Logger:          a.Logger,
	})
	if err != nil {
		return err
	}

	if a.Config.HTTP.Addr != "" {
		gw := a.gateway()
		if err := gw.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := gw.Stop(context.Background()); err != nil {
				a.Logger.Warn("gateway stop failed", "error", err)
			}
		}()
	}

	return loop.Run(ctx)
}

// Serve runs the gateway alone until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.HTTP.Addr == "" {
		return errors.New("app: HTTP_ADDR is required to serve")
	}
	gw := a.gateway()
	if err := gw.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return gw.Stop(context.Background())
}

func (a *App) gateway() *gateway.Gateway {
	return gateway.New(gateway.Config{
		Bind:            a.Config.HTTP.Addr,
		Dir:             a.Config.Output.Dir,
		Auth:            gateway.AuthConfig{BearerToken: a.Config.HTTP.AuthToken},
		ShutdownTimeout: a.Config.HTTP.ShutdownTimeout,
	}, a.tracker, a.registry, a.Logger)
}
