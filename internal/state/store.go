package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/config"
	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// Store loads and saves State.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case config.StateBackendJSON, "":
		return NewFileStore(path, logger), nil
	case config.StateBackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("state: unknown backend %q", backend)
	}
}

func nowStamp(now func() time.Time) string {
	return now().Format(movie.TimestampLayout)
}
