package rss

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/state"
	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// parsed mirrors the subset of RSS the assertions need.
type parsed struct {
	Channel struct {
		Title         string `xml:"title"`
		LastBuildDate string `xml:"lastBuildDate"`
		Items         []struct {
			Title string `xml:"title"`
			Link  string `xml:"link"`
			GUID  struct {
				IsPermaLink string `xml:"isPermaLink,attr"`
				Value       string `xml:",chardata"`
			} `xml:"guid"`
			PubDate     string `xml:"pubDate"`
			Description string `xml:"description"`
			Encoded     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
		} `xml:"item"`
	} `xml:"channel"`
}

func mustParse(t *testing.T, data []byte) parsed {
	t.Helper()
	var p parsed
	if err := xml.Unmarshal(data, &p); err != nil {
		t.Fatalf("invalid XML: %v\n%s", err, data)
	}
	return p
}

func baseParams() FeedParams {
	return FeedParams{
		Title:       "Cineplexx — репертуар",
		Link:        "https://cineplexx.me",
		Description: "Текущие фильмы в прокате",
		Now:         time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuildCinemaFeed_EventsNewestFirst(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.EventsLimit = 2
	p.Events = []movie.Event{
		{Type: movie.EventAdd, Title: "Old", URL: "https://cineplexx.me/film/old", TS: "2026-01-01T00:00:00+00:00", Location: "0", Date: "2026-01-01"},
		{Type: movie.EventAdd, Title: "Dune", URL: "https://cineplexx.me/film/dune", TS: "2026-01-04T01:23:45+01:00", Location: "0", Date: "2026-01-04"},
		{Type: movie.EventRemove, Title: "Gone", URL: "", TS: "not a time", Location: "0", Date: "2026-01-05"},
	}

	out, err := BuildCinemaFeed(p)
	if err != nil {
		t.Fatalf("BuildCinemaFeed() error: %v", err)
	}
	feed := mustParse(t, out)

	items := feed.Channel.Items
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	removed := items[0]
	if removed.Title != "➖ Убран: Gone" {
		t.Errorf("title = %q", removed.Title)
	}
	if removed.Link != p.Link {
		t.Errorf("link = %q, want feed link fallback", removed.Link)
	}
	if removed.PubDate != "Mon, 05 Jan 2026 10:00:00 +0000" {
		t.Errorf("pubDate = %q, want now fallback", removed.PubDate)
	}
	if removed.GUID.IsPermaLink != "false" || !strings.HasPrefix(removed.GUID.Value, "urn:sha256:") {
		t.Errorf("guid = %+v", removed.GUID)
	}
	if want := "➖ Убран: Gone\nlocation=0, date=2026-01-05\nhttps://cineplexx.me"; removed.Description != want {
		t.Errorf("description = %q, want %q", removed.Description, want)
	}

	added := items[1]
	if added.Title != "➕ Добавлен: Dune" {
		t.Errorf("title = %q", added.Title)
	}
	if added.PubDate != "Sun, 04 Jan 2026 01:23:45 +0100" {
		t.Errorf("pubDate = %q", added.PubDate)
	}
}

func TestBuildCinemaFeed_NoEventsWhenLimitZero(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.EventsLimit = 0
	p.Events = []movie.Event{{Type: movie.EventAdd, Title: "A", URL: "u", TS: "2026-01-01T00:00:00+00:00"}}

	out, err := BuildCinemaFeed(p)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(mustParse(t, out).Channel.Items); n != 0 {
		t.Errorf("items = %d, want 0", n)
	}
}

func TestBuildCinemaFeed_NegativeLimitPublishesAllEvents(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.EventsLimit = -1
	p.Events = []movie.Event{
		{Type: movie.EventAdd, Title: "A", URL: "u1", TS: "2026-01-01T00:00:00+00:00"},
		{Type: movie.EventRemove, Title: "B", URL: "u2", TS: "2026-01-02T00:00:00+00:00"},
	}

	out, err := BuildCinemaFeed(p)
	if err != nil {
		t.Fatal(err)
	}
	items := mustParse(t, out).Channel.Items
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if !strings.HasSuffix(items[0].Title, ": B") {
		t.Errorf("first item = %q, want newest event first", items[0].Title)
	}
}

func TestPublishedEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total, limit, want int
	}{
		{total: 5, limit: 0, want: 0},
		{total: 5, limit: 3, want: 3},
		{total: 5, limit: 10, want: 5},
		{total: 5, limit: -1, want: 5},
		{total: 0, limit: -1, want: 0},
	}
	for _, tt := range tests {
		if got := PublishedEvents(tt.total, tt.limit); got != tt.want {
			t.Errorf("PublishedEvents(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestBuildCinemaFeed_PubDateStableForCurrentItems(t *testing.T) {
	t.Parallel()

	firstSeen := "2026-01-04T01:23:45+00:00"
	m := movie.Movie{Title: "Test", URL: "https://cineplexx.me/film/Test", Description: "Desc"}
	snap := map[string]state.SnapshotEntry{m.URL: {Title: "Test", FirstSeen: firstSeen, LastSeen: firstSeen}}

	var pubDates []string
	for _, now := range []time.Time{
		time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC),
	} {
		p := baseParams()
		p.Now = now
		p.Movies = []movie.Movie{m}
		p.Snapshot = snap
		out, err := BuildCinemaFeed(p)
		if err != nil {
			t.Fatal(err)
		}
		item := mustParse(t, out).Channel.Items[0]
		if item.GUID.IsPermaLink != "true" || item.GUID.Value != m.URL {
			t.Errorf("guid = %+v", item.GUID)
		}
		pubDates = append(pubDates, item.PubDate)
	}

	want := "Sun, 04 Jan 2026 01:23:45 +0000"
	for i, d := range pubDates {
		if d != want {
			t.Errorf("pubDate[%d] = %q, want %q", i, d, want)
		}
	}
}

func TestBuildCinemaFeed_ContentEncodedSessions(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.Movies = []movie.Movie{{
		Title: "Test",
		URL:   "https://cineplexx.me/film/Test",
		Sessions: []movie.Session{{
			Date: "2026-01-05", Time: "15:30", Hall: "Sala 2", Info: "2D, SINH",
			SessionID: "1", CinemaName: "CINEPLEXX PODGORICA", PurchaseURL: "https://cineplexx.me/buy/1?a=1&b=2",
		}},
	}}

	out, err := BuildCinemaFeed(p)
	if err != nil {
		t.Fatal(err)
	}
	raw := string(out)
	if !strings.Contains(raw, `xmlns:content="http://purl.org/rss/1.0/modules/content/"`) {
		t.Error("missing content namespace")
	}
	if !strings.Contains(raw, "<content:encoded><![CDATA[") {
		t.Error("missing CDATA content")
	}

	item := mustParse(t, out).Channel.Items[0]
	if item.Description != "Сейчас в репертуаре: Test" {
		t.Errorf("description = %q", item.Description)
	}
	wantLi := `<li>2026-01-05 15:30 · Sala 2 · 2D, SINH · CINEPLEXX PODGORICA · <a href="https://cineplexx.me/buy/1?a=1&amp;b=2">Купить билет</a></li>`
	if !strings.Contains(item.Encoded, "<ul>"+wantLi+"</ul>") {
		t.Errorf("content = %q", item.Encoded)
	}
}

func TestEventGUID(t *testing.T) {
	t.Parallel()

	a := movie.Event{Type: movie.EventAdd, URL: "u", TS: "t1"}
	b := a
	b.TS = "t2"
	if EventGUID(a) == EventGUID(b) {
		t.Error("re-added movie must get a new guid")
	}
	if EventGUID(a) != EventGUID(a) {
		t.Error("guid must be deterministic")
	}
	// sha256("event:add|u|t1")
	if len(EventGUID(a)) != len("urn:sha256:")+64 {
		t.Errorf("guid = %q", EventGUID(a))
	}
}

func TestBuildChannelFeed(t *testing.T) {
	t.Parallel()

	out, err := BuildChannelFeed(Channel{
		Title:   "Telegram — @durov",
		Link:    "https://t.me/s/durov",
		BuiltAt: time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC),
		Items: []Item{
			{Title: "Post 2", Link: "https://t.me/durov/2", GUID: "https://t.me/durov/2", PermaLink: true, Description: "<b>hi</b> & bye"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("missing XML header")
	}
	feed := mustParse(t, out)
	if feed.Channel.LastBuildDate != "Sun, 04 Jan 2026 00:00:00 +0000" {
		t.Errorf("lastBuildDate = %q", feed.Channel.LastBuildDate)
	}
	if got := feed.Channel.Items[0].Description; got != "<b>hi</b> & bye" {
		t.Errorf("description = %q", got)
	}
	if strings.Contains(string(out), "content:encoded") {
		t.Error("content:encoded should be omitted without HTML")
	}
}
