package worker

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"syscall"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestNewExecRunner(t *testing.T) {
	t.Parallel()

	r, err := NewExecRunner(`python -m "cineplexx_rss.main" --flag 'a b'`)
	if err != nil {
		t.Fatalf("NewExecRunner() error: %v", err)
	}
	want := []string{"python", "-m", "cineplexx_rss.main", "--flag", "a b"}
	if len(r.Args) != len(want) {
		t.Fatalf("args = %q, want %q", r.Args, want)
	}
	for i := range want {
		if r.Args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, r.Args[i], want[i])
		}
	}

	if _, err := NewExecRunner("   "); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("blank command error = %v, want ErrEmptyCommand", err)
	}
}

func TestExecRunner_Success(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	var stdout bytes.Buffer
	r := &ExecRunner{Args: []string{"sh", "-c", "echo built"}, Stdout: &stdout}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stdout.String() != "built\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestExecRunner_ExitCode(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	r := &ExecRunner{Args: []string{"sh", "-c", "exit 3"}, Stderr: &bytes.Buffer{}}
	err := r.Run(context.Background())

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Run() error = %v, want *CommandError", err)
	}
	if cmdErr.Code != 3 {
		t.Errorf("code = %d, want 3", cmdErr.Code)
	}
	if ExitCode(err) != 3 {
		t.Errorf("ExitCode = %d, want 3", ExitCode(err))
	}
}

func TestExecRunner_KilledBySignal(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	r := &ExecRunner{Args: []string{"sh", "-c", "kill -TERM $$"}, Stderr: &bytes.Buffer{}}
	err := r.Run(context.Background())

	if got, want := ExitCode(err), 128+int(syscall.SIGTERM); got != want {
		t.Errorf("ExitCode = %d, want %d (err = %v)", got, want, err)
	}
}

func TestExecRunner_NotFound(t *testing.T) {
	t.Parallel()

	r := &ExecRunner{Args: []string{"definitely-not-a-real-binary-xyz"}}
	if code := ExitCode(r.Run(context.Background())); code != exitNotFound {
		t.Errorf("ExitCode = %d, want %d", code, exitNotFound)
	}
}

func TestExecRunner_Cancel(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	r := &ExecRunner{Args: []string{"sleep", "30"}}
	if err := r.Run(ctx); err == nil {
		t.Fatal("expected error from cancelled command")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancelled command was not terminated promptly")
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	if ExitCode(nil) != 0 {
		t.Error("nil error should map to 0")
	}
	if ExitCode(errors.New("boom")) != 1 {
		t.Error("plain error should map to 1")
	}
	wrapped := errors.Join(errors.New("ctx"), &CommandError{Code: 42})
	if ExitCode(wrapped) != 42 {
		t.Error("wrapped CommandError should keep its code")
	}
}
