package rss

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"strings"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/state"
	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// Item title prefixes for repertoire changes.
const (
	addedPrefix   = "➕ Добавлен: "
	removedPrefix = "➖ Убран: "
	currentPrefix = "Сейчас в репертуаре: "
)

// FeedParams describes the cinema feed.
type FeedParams struct {
	Title       string
	Link        string
	Description string
	Now         time.Time

	// Events is the full log, oldest first.
	Events []movie.Event
	// EventsLimit is how many of the newest events are published. Zero
	// publishes none, a negative limit publishes all.
	EventsLimit int

	Movies   []movie.Movie
	Snapshot map[string]state.SnapshotEntry
}

// BuildCinemaFeed renders the newest change events followed by the current
// repertoire. Current items use their first-seen time as pubDate so that
// readers do not see them as new on every build.
func BuildCinemaFeed(p FeedParams) ([]byte, error) {
	ch := Channel{
		Title:       p.Title,
		Link:        p.Link,
		Description: p.Description,
		BuiltAt:     p.Now,
	}

	for _, ev := range recentEvents(p.Events, p.EventsLimit) {
		ch.Items = append(ch.Items, eventItem(ev, p.Link, p.Now))
	}
	for _, m := range p.Movies {
		ch.Items = append(ch.Items, movieItem(m, p.Snapshot[m.URL], p.Now))
	}
	return BuildChannelFeed(ch)
}

// PublishedEvents reports how many of total events a feed with the given
// limit carries.
func PublishedEvents(total, limit int) int {
	if limit < 0 {
		return total
	}
	return min(limit, total)
}

// recentEvents returns the last limit events, newest first.
func recentEvents(events []movie.Event, limit int) []movie.Event {
	n := PublishedEvents(len(events), limit)
	if n == 0 {
		return nil
	}
	start := len(events) - n
	out := make([]movie.Event, 0, n)
	for i := len(events) - 1; i >= start; i-- {
		out = append(out, events[i])
	}
	return out
}

func eventItem(ev movie.Event, feedLink string, now time.Time) Item {
	prefix := removedPrefix
	if ev.Type == movie.EventAdd {
		prefix = addedPrefix
	}
	title := prefix + ev.Title

	link := ev.URL
	if link == "" {
		link = feedLink
	}

	return Item{
		Title:       title,
		Link:        link,
		GUID:        EventGUID(ev),
		PubDate:     parseTimestamp(ev.TS, now),
		Description: title + "\nlocation=" + ev.Location + ", date=" + ev.Date + "\n" + feedLink,
	}
}

func movieItem(m movie.Movie, entry state.SnapshotEntry, now time.Time) Item {
	desc := m.Description
	if desc == "" {
		desc = currentPrefix + m.Title
	}
	return Item{
		Title:       m.Title,
		Link:        m.URL,
		GUID:        m.URL,
		PermaLink:   true,
		PubDate:     parseTimestamp(entry.FirstSeen, now),
		Description: desc,
		HTML:        movieHTML(desc, m.Sessions),
	}
}

// EventGUID is stable for an event occurrence. A movie that is added again
// later gets a new GUID because its timestamp differs.
func EventGUID(ev movie.Event) string {
	sum := sha256.Sum256([]byte("event:" + string(ev.Type) + "|" + ev.URL + "|" + ev.TS))
	return "urn:sha256:" + hex.EncodeToString(sum[:])
}

func parseTimestamp(ts string, fallback time.Time) time.Time {
	if ts == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return fallback
	}
	return t
}

func movieHTML(desc string, sessions []movie.Session) string {
	var b strings.Builder
	b.WriteString("<p>")
	b.WriteString(html.EscapeString(desc))
	b.WriteString("</p>")
	if len(sessions) == 0 {
		return b.String()
	}

	b.WriteString("<ul>")
	for _, s := range sessions {
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(sessionLine(s)))
		if s.PurchaseURL != "" {
			b.WriteString(` · <a href="`)
			b.WriteString(html.EscapeString(s.PurchaseURL))
			b.WriteString(`">Купить билет</a>`)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

func sessionLine(s movie.Session) string {
	parts := make([]string, 0, 4)
	if when := strings.TrimSpace(s.Date + " " + s.Time); when != "" {
		parts = append(parts, when)
	}
	for _, p := range []string{s.Hall, s.Info, s.CinemaName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " · ")
}
