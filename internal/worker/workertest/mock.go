// Package workertest provides test doubles for the worker package.
package workertest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/worker"
)

// MockRunner is a scripted worker.Runner. Results are returned in order;
// once exhausted, RunFunc (or nil) decides the outcome.
type MockRunner struct {
	Results []error
	RunFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls int
}

var _ worker.Runner = (*MockRunner)(nil)

// Run implements worker.Runner.
func (m *MockRunner) Run(ctx context.Context) error {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.mu.Unlock()

	if idx < len(m.Results) {
		return m.Results[idx]
	}
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// Calls returns the number of Run invocations.
func (m *MockRunner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Sleeper records requested sleeps without blocking. After Limit sleeps
// (when positive) it returns StopErr so the loop under test terminates.
type Sleeper struct {
	Limit   int
	StopErr error

	mu    sync.Mutex
	slept []time.Duration
}

// Sleep matches worker.Config.Sleep.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	if s.Limit > 0 && len(s.slept) >= s.Limit {
		return s.StopErr
	}
	return ctx.Err()
}

// Durations returns the recorded sleep durations.
func (s *Sleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}
