package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"
)

// ErrEmptyCommand is returned when a command line has no words.
var ErrEmptyCommand = errors.New("worker: empty command")

// Exit codes used when a command did not report one.
const (
	exitGeneric  = 1
	exitNotFound = 127
)

// killGrace bounds how long a cancelled command may take to exit after
// SIGTERM before it is killed.
const killGrace = 10 * time.Second

// CommandError reports a command that did not exit cleanly.
type CommandError struct {
	Command string
	Code    int
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("worker: command %q exited with code %d: %v", e.Command, e.Code, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode maps a loop error to a process exit status: 0 for nil, the
// command's own status for a CommandError and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code
	}
	return exitGeneric
}

// ExecRunner runs an external program and waits for it. The program
// inherits the worker's environment and standard streams unless
// overridden.
type ExecRunner struct {
	Args   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner splits a command line using shell quoting rules.
func NewExecRunner(command string) (*ExecRunner, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("worker: parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return &ExecRunner{Args: args}, nil
}

// String returns the command line.
func (r *ExecRunner) String() string {
	return strings.Join(r.Args, " ")
}

// Run starts the command and blocks until it exits. Cancelling ctx sends
// SIGTERM to the child.
func (r *ExecRunner) Run(ctx context.Context) error {
	if len(r.Args) == 0 {
		return ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, r.Args[0], r.Args[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdin = nil
	cmd.Stdout = orDefault(r.Stdout, os.Stdout)
	cmd.Stderr = orDefault(r.Stderr, os.Stderr)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace

	err := cmd.Run()
	if err == nil {
		return nil
	}

	code := exitGeneric
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		if c := exitErr.ExitCode(); c > 0 {
			code = c
		}
		// Killed by a signal: report it the way a shell does.
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			code = 128 + int(ws.Signal())
		}
	case errors.Is(err, exec.ErrNotFound):
		code = exitNotFound
	}
	return &CommandError{Command: r.String(), Code: code, Err: err}
}

func orDefault(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}
