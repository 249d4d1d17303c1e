// Package movie defines the cinema repertoire data contract shared by the
// scraper, the state store, and the feed builders.
package movie

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

// TimestampLayout is the ISO-8601 layout used for event and snapshot
// timestamps (seconds precision, numeric offset).
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// DateLayout is the layout of the date query parameter used by the site.
const DateLayout = "2006-01-02"

// Movie is a film currently listed in the repertoire.
type Movie struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	Sessions    []Session `json:"sessions,omitempty"`
}

// Session is a single screening of a movie.
type Session struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Hall        string `json:"hall"`
	Info        string `json:"info"`
	SessionID   string `json:"session_id"`
	CinemaName  string `json:"cinema_name"`
	PurchaseURL string `json:"purchase_url"`
}

// EventType discriminates repertoire change events.
type EventType string

const (
	// EventAdd marks a movie that appeared in the repertoire.
	EventAdd EventType = "add"
	// EventRemove marks a movie that left the repertoire.
	EventRemove EventType = "remove"
)

// Event records a detected repertoire change.
type Event struct {
	Type     EventType `json:"type"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	TS       string    `json:"ts"`       // detection time, TimestampLayout
	Location string    `json:"location"` // location id used when scraping
	Date     string    `json:"date"`     // date param used when scraping
}

var spaceRun = regexp.MustCompile(`\s+`)

// NormalizeSpace collapses whitespace runs into single spaces and trims.
func NormalizeSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Sort orders movies by case-insensitive title, then URL.
func Sort(movies []Movie) {
	slices.SortFunc(movies, func(a, b Movie) int {
		if c := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c
		}
		return cmp.Compare(a.URL, b.URL)
	})
}
