package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/flemzord/cineplexx-rss/internal/worker"
)

// Interrupt records the signal that cancelled a context.
type Interrupt struct {
	mu  sync.Mutex
	sig os.Signal
}

// WithInterrupt returns a context cancelled on SIGINT or SIGTERM. The stop
// function releases the signal handler.
func WithInterrupt(parent context.Context) (context.Context, *Interrupt, func()) {
	ctx, cancel := context.WithCancel(parent)
	intr := &Interrupt{}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case s := <-ch:
			intr.set(s)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, intr, func() {
		signal.Stop(ch)
		cancel()
	}
}

func (i *Interrupt) set(s os.Signal) {
	i.mu.Lock()
	i.sig = s
	i.mu.Unlock()
}

// Signal returns the received signal, or nil.
func (i *Interrupt) Signal() os.Signal {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sig
}

// ExitCode maps the outcome of a command to a process exit status.
// Termination by signal reports 128 plus the signal number.
func ExitCode(err error, intr *Interrupt) int {
	if s, ok := intr.Signal().(syscall.Signal); ok {
		return 128 + int(s)
	}
	return worker.ExitCode(err)
}
