// Package worker runs a command on a fixed cadence: announce the interval,
// then run, sleep and repeat until the command fails or the context ends.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/cineplexx-rss/internal/metrics"
	"github.com/flemzord/cineplexx-rss/internal/telemetry"
)

// DefaultIntervalMinutes applies when no interval is configured.
const DefaultIntervalMinutes = 360

// markerLayout renders local time with seconds and a numeric offset.
const markerLayout = "2006-01-02T15:04:05-07:00"

// ErrInvalidInterval is returned by New for an interval below one minute.
var ErrInvalidInterval = errors.New("worker: interval must be at least 1 minute")

// RunError is a runner failure that ended the loop. The loop has already
// logged it.
type RunError struct {
	Err error
}

func (e *RunError) Error() string { return e.Err.Error() }

func (e *RunError) Unwrap() error { return e.Err }

// Runner is the unit of work invoked on every cycle.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Config holds the loop dependencies. Zero values pick the defaults.
type Config struct {
	IntervalMinutes int

	// Schedule, when set, replaces the fixed interval: after each run the
	// loop sleeps until the next activation.
	Schedule cron.Schedule

	Runner Runner

	// Out receives the marker lines. Defaults to os.Stdout.
	Out    io.Writer
	Logger *slog.Logger

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Loop drives Runner on a fixed cadence. At most one run is in flight.
type Loop struct {
	interval int
	schedule cron.Schedule
	runner   Runner
	out      io.Writer
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// New validates cfg and builds a Loop.
func New(cfg Config) (*Loop, error) {
	if cfg.IntervalMinutes == 0 {
		cfg.IntervalMinutes = DefaultIntervalMinutes
	}
	if cfg.IntervalMinutes < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, cfg.IntervalMinutes)
	}
	if cfg.Runner == nil {
		return nil, errors.New("worker: runner is required")
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	return &Loop{
		interval: cfg.IntervalMinutes,
		schedule: cfg.Schedule,
		runner:   cfg.Runner,
		out:      cfg.Out,
		logger:   cfg.Logger.With("component", "worker"),
		now:      cfg.Now,
		sleep:    cfg.Sleep,
	}, nil
}

// Interval returns the configured pause between runs.
func (l *Loop) Interval() time.Duration {
	return time.Duration(l.interval) * time.Minute
}

// Run prints the startup line and cycles until the runner fails or ctx is
// done. A runner failure is returned as a *RunError wrapping the runner's
// error, so its exit code survives. Cancellation returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	if err := l.mark("interval=%dm", l.interval); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.mark("run at %s", l.now().Format(markerLayout)); err != nil {
			return err
		}

		if err := l.cycle(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &RunError{Err: err}
		}

		wait, minutes := l.nextWait()
		if err := l.mark("sleep %dm", minutes); err != nil {
			return err
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Loop) cycle(ctx context.Context) (err error) {
	ctx, span := telemetry.Start(ctx, "worker.cycle",
		attribute.Int("worker.interval_minutes", l.interval),
	)
	defer func() { telemetry.End(span, err) }()

	start := time.Now()
	err = l.runner.Run(ctx)
	elapsed := time.Since(start)

	metrics.WorkerRunDuration.Observe(elapsed.Seconds())
	metrics.WorkerLastRun.SetToCurrentTime()

	if err != nil {
		metrics.WorkerRuns.WithLabelValues(metrics.ResultFailure).Inc()
		l.logger.Error("run failed", "duration", elapsed, "error", err)
		return err
	}
	metrics.WorkerRuns.WithLabelValues(metrics.ResultSuccess).Inc()
	l.logger.Debug("run finished", "duration", elapsed)
	return nil
}

// nextWait returns how long to sleep and the whole minutes announced.
func (l *Loop) nextWait() (time.Duration, int) {
	if l.schedule == nil {
		return l.Interval(), l.interval
	}
	now := l.now()
	wait := l.schedule.Next(now).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait, int(math.Ceil(wait.Minutes()))
}

func (l *Loop) mark(format string, args ...any) error {
	if _, err := fmt.Fprintf(l.out, "[worker] "+format+"\n", args...); err != nil {
		return fmt.Errorf("worker: write marker: %w", err)
	}
	return nil
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
