// Package state persists the last seen repertoire and the log of changes
// detected between runs.
package state

import (
	"cmp"
	"slices"

	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// DefaultMaxEvents bounds the event log when no limit is configured.
const DefaultMaxEvents = 5000

// SnapshotEntry is what is remembered about a movie in the repertoire.
type SnapshotEntry struct {
	Title     string `json:"title"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

// State is the persisted worker state for one location.
type State struct {
	// Snapshot maps movie URL to its entry.
	Snapshot map[string]SnapshotEntry `json:"snapshot"`
	// Events is append-only, oldest first.
	Events []movie.Event `json:"events"`
}

// New returns an empty state.
func New() *State {
	return &State{
		Snapshot: make(map[string]SnapshotEntry),
		Events:   []movie.Event{},
	}
}

// Diff compares the previous snapshot with the current movies. Both
// results are sorted by URL.
func Diff(prev map[string]SnapshotEntry, current []movie.Movie) (added, removed []movie.Movie) {
	cur := make(map[string]string, len(current))
	for _, m := range current {
		cur[m.URL] = m.Title
	}

	for u, title := range cur {
		if _, ok := prev[u]; !ok {
			added = append(added, movie.Movie{Title: title, URL: u})
		}
	}
	for u, e := range prev {
		if _, ok := cur[u]; !ok {
			removed = append(removed, movie.Movie{Title: e.Title, URL: u})
		}
	}

	byURL := func(a, b movie.Movie) int { return cmp.Compare(a.URL, b.URL) }
	slices.SortFunc(added, byURL)
	slices.SortFunc(removed, byURL)
	return added, removed
}

// AppendEvents records one event per change, added movies first.
func AppendEvents(st *State, added, removed []movie.Movie, ts, location, date string) {
	for _, m := range added {
		st.Events = append(st.Events, movie.Event{
			Type: movie.EventAdd, Title: m.Title, URL: m.URL, TS: ts, Location: location, Date: date,
		})
	}
	for _, m := range removed {
		st.Events = append(st.Events, movie.Event{
			Type: movie.EventRemove, Title: m.Title, URL: m.URL, TS: ts, Location: location, Date: date,
		})
	}
}

// UpdateSnapshot replaces the snapshot with current. Known URLs keep their
// FirstSeen; every entry gets LastSeen = ts.
func UpdateSnapshot(st *State, current []movie.Movie, ts string) {
	next := make(map[string]SnapshotEntry, len(current))
	for _, m := range current {
		first := ts
		if prev, ok := st.Snapshot[m.URL]; ok && prev.FirstSeen != "" {
			first = prev.FirstSeen
		}
		next[m.URL] = SnapshotEntry{Title: m.Title, FirstSeen: first, LastSeen: ts}
	}
	st.Snapshot = next
}

// TrimEvents keeps the newest max events. A non-positive max applies
// DefaultMaxEvents.
func TrimEvents(st *State, limit int) {
	if limit <= 0 {
		limit = DefaultMaxEvents
	}
	if n := len(st.Events); n > limit {
		st.Events = slices.Clone(st.Events[n-limit:])
	}
}
