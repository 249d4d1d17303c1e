package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/fsutil"
	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// FileStore keeps State in a pretty-printed JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store for path. The file is created on Save.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With("component", "state"),
		now:    time.Now,
	}
}

// onDisk accepts both the current snapshot entries and the legacy form
// where each snapshot value was the bare title.
type onDisk struct {
	Snapshot map[string]json.RawMessage `json:"snapshot"`
	Events   []movie.Event              `json:"events"`
}

// Load reads the state file. A missing or unreadable file yields an empty
// state so the next run starts fresh.
func (s *FileStore) Load(_ context.Context) (*State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", s.path, err)
	}

	var raw onDisk
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("state file corrupt, starting empty", "path", s.path, "error", err)
		return New(), nil
	}

	st := New()
	if raw.Events != nil {
		st.Events = raw.Events
	}
	migrated := 0
	stamp := nowStamp(s.now)
	for u, v := range raw.Snapshot {
		var entry SnapshotEntry
		if err := json.Unmarshal(v, &entry); err == nil {
			st.Snapshot[u] = entry
			continue
		}
		var title string
		if err := json.Unmarshal(v, &title); err != nil {
			s.logger.Warn("dropping unreadable snapshot entry", "url", u, "error", err)
			continue
		}
		st.Snapshot[u] = SnapshotEntry{Title: title, FirstSeen: stamp, LastSeen: stamp}
		migrated++
	}
	if migrated > 0 {
		s.logger.Info("migrated legacy snapshot entries", "count", migrated)
	}
	return st, nil
}

// Save writes st atomically. Non-ASCII text is kept as is.
func (s *FileStore) Save(_ context.Context, st *State) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("state: save: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
