package gateway

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/flemzord/cineplexx-rss/internal/index"
)

// Tracker remembers the outcome of the feed builds run by this process.
// It is safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	last *index.Status

	runs     atomic.Int64
	failures atomic.Int64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record stores s as the latest run.
func (t *Tracker) Record(s index.Status) {
	t.runs.Add(1)
	if !s.OK {
		t.failures.Add(1)
	}
	t.mu.Lock()
	t.last = &s
	t.mu.Unlock()
}

// Last returns the latest recorded run.
func (t *Tracker) Last() (index.Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return index.Status{}, false
	}
	return *t.last, true
}

// Snapshot returns the run counters.
func (t *Tracker) Snapshot() RunCounters {
	return RunCounters{
		Runs:     t.runs.Load(),
		Failures: t.failures.Load(),
	}
}

// RunCounters is a serializable view of the tracker counters.
type RunCounters struct {
	Runs     int64 `json:"runs"`
	Failures int64 `json:"failures"`
}

// readStatusFile loads a status.json written by another process.
func readStatusFile(path string) (index.Status, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return index.Status{}, err
	}
	var s index.Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return index.Status{}, fmt.Errorf("gateway: decode %s: %w", path, err)
	}
	return s, nil
}
