package worker_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/worker"
	"github.com/flemzord/cineplexx-rss/internal/worker/workertest"
)

var errStop = errors.New("stop")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() func() time.Time {
	zone := time.FixedZone("CET", 2*60*60)
	ts := time.Date(2026, 10, 19, 8, 0, 0, 0, zone)
	return func() time.Time { return ts }
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestLoop_OutputAndSleep(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	runner := &workertest.MockRunner{}
	sleeper := &workertest.Sleeper{Limit: 2, StopErr: errStop}

	loop, err := worker.New(worker.Config{
		IntervalMinutes: 15,
		Runner:          runner,
		Out:             &out,
		Logger:          quietLogger(),
		Now:             fixedClock(),
		Sleep:           sleeper.Sleep,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := loop.Run(context.Background()); !errors.Is(err, errStop) {
		t.Fatalf("Run() error = %v, want errStop", err)
	}

	want := []string{
		"[worker] interval=15m",
		"[worker] run at 2026-10-19T08:00:00+02:00",
		"[worker] sleep 15m",
		"[worker] run at 2026-10-19T08:00:00+02:00",
		"[worker] sleep 15m",
	}
	got := lines(&out)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	if runner.Calls() != 2 {
		t.Errorf("runner calls = %d, want 2", runner.Calls())
	}
	for i, d := range sleeper.Durations() {
		if d != 15*time.Minute {
			t.Errorf("sleep[%d] = %v, want 15m", i, d)
		}
	}
}

func TestLoop_DefaultInterval(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	sleeper := &workertest.Sleeper{Limit: 1, StopErr: errStop}
	loop, err := worker.New(worker.Config{
		Runner: &workertest.MockRunner{},
		Out:    &out,
		Logger: quietLogger(),
		Now:    fixedClock(),
		Sleep:  sleeper.Sleep,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_ = loop.Run(context.Background())

	if got := lines(&out)[0]; got != "[worker] interval=360m" {
		t.Errorf("startup line = %q", got)
	}
	if d := sleeper.Durations(); len(d) != 1 || d[0] != 360*time.Minute {
		t.Errorf("sleeps = %v, want [6h]", d)
	}
}

func TestLoop_FailureStopsWithoutSleep(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	failure := &worker.CommandError{Command: "false", Code: 3, Err: errors.New("exit status 3")}
	runner := &workertest.MockRunner{Results: []error{nil, failure}}
	sleeper := &workertest.Sleeper{}

	loop, err := worker.New(worker.Config{
		IntervalMinutes: 1,
		Runner:          runner,
		Out:             &out,
		Logger:          quietLogger(),
		Now:             fixedClock(),
		Sleep:           sleeper.Sleep,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	err = loop.Run(context.Background())
	if !errors.Is(err, failure) {
		t.Fatalf("Run() error = %v, want command failure", err)
	}
	var runErr *worker.RunError
	if !errors.As(err, &runErr) {
		t.Errorf("Run() error = %T, want *worker.RunError", err)
	}
	if code := worker.ExitCode(err); code != 3 {
		t.Errorf("ExitCode = %d, want 3", code)
	}

	got := lines(&out)
	if last := got[len(got)-1]; !strings.HasPrefix(last, "[worker] run at ") {
		t.Errorf("last line = %q, want a run line", last)
	}
	if n := len(sleeper.Durations()); n != 1 {
		t.Errorf("sleeps = %d, want 1", n)
	}
	if runner.Calls() != 2 {
		t.Errorf("runner calls = %d, want 2", runner.Calls())
	}
}

func TestLoop_CancelDuringRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runner := &workertest.MockRunner{RunFunc: func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return errors.New("signal: terminated")
	}}

	loop, err := worker.New(worker.Config{
		IntervalMinutes: 1,
		Runner:          runner,
		Out:             io.Discard,
		Logger:          quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestLoop_CancelDuringSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runner := &workertest.MockRunner{RunFunc: func(context.Context) error {
		cancel()
		return nil
	}}

	loop, err := worker.New(worker.Config{
		IntervalMinutes: 60,
		Runner:          runner,
		Out:             io.Discard,
		Logger:          quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on cancellation")
	}
}

func TestLoop_CronSchedule(t *testing.T) {
	t.Parallel()

	sched, err := worker.ParseSchedule("30 8 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule() error: %v", err)
	}

	var out bytes.Buffer
	sleeper := &workertest.Sleeper{Limit: 1, StopErr: errStop}
	loop, err := worker.New(worker.Config{
		IntervalMinutes: 360,
		Schedule:        sched,
		Runner:          &workertest.MockRunner{},
		Out:             &out,
		Logger:          quietLogger(),
		Now:             fixedClock(),
		Sleep:           sleeper.Sleep,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	_ = loop.Run(context.Background())

	if d := sleeper.Durations(); len(d) != 1 || d[0] != 30*time.Minute {
		t.Errorf("sleeps = %v, want [30m]", d)
	}
	if got := lines(&out)[2]; got != "[worker] sleep 30m" {
		t.Errorf("sleep line = %q", got)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := worker.New(worker.Config{IntervalMinutes: -5, Runner: &workertest.MockRunner{}}); !errors.Is(err, worker.ErrInvalidInterval) {
		t.Errorf("negative interval: error = %v, want ErrInvalidInterval", err)
	}
	if _, err := worker.New(worker.Config{IntervalMinutes: 5}); err == nil {
		t.Error("missing runner: expected error")
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	if s, err := worker.ParseSchedule("  "); err != nil || s != nil {
		t.Errorf("empty expression = (%v, %v), want (nil, nil)", s, err)
	}
	if _, err := worker.ParseSchedule("not a cron"); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestSleep(t *testing.T) {
	t.Parallel()

	if err := worker.Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := worker.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() on cancelled ctx = %v", err)
	}
}
