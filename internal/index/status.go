package index

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/cineplexx"
)

// FeedResult reports how one feed fared in a run.
type FeedResult struct {
	FeedLink
	OK    bool   `json:"ok"`
	Items int    `json:"items"`
	Error string `json:"error,omitempty"`
}

// Status is written to status.json after every run and served by the
// gateway.
type Status struct {
	OK            bool            `json:"ok"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	DurationMS    int64           `json:"duration_ms"`
	Location      string          `json:"location"`
	Date          string          `json:"date"`
	Movies        int             `json:"movies"`
	EventsAdded   int             `json:"events_added"`
	EventsRemoved int             `json:"events_removed"`
	Feeds         []FeedResult    `json:"feeds"`
	Scrape        cineplexx.Stats `json:"scrape"`
	Error         string          `json:"error,omitempty"`
}

// Marshal encodes s as indented JSON.
func (s Status) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("index: encode status: %w", err)
	}
	return append(out, '\n'), nil
}
