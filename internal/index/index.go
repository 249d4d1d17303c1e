// Package index renders the feed directory (index.html and index.xml) and
// the machine-readable run status published next to the feeds.
package index

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/rss"
)

// Feed kinds with their own section.
const (
	KindCineplexx = "cineplexx"
	KindTelegram  = "telegram"
)

// Default file names in the output directory.
const (
	HTMLFile   = "index.html"
	XMLFile    = "index.xml"
	StatusFile = "status.json"
)

//go:embed templates/index.html.tmpl
var indexTemplate string

var pageTmpl = template.Must(template.New("index").Parse(indexTemplate))

// FeedLink is one published feed.
type FeedLink struct {
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Href     string `json:"href"`
	Subtitle string `json:"subtitle,omitempty"`
}

// SearchKey is the lower-cased text matched by the page search box.
func (f FeedLink) SearchKey() string {
	return strings.ToLower(f.Title + " " + f.Subtitle + " " + f.Href)
}

// KindClass is the CSS modifier for the kind badge.
func (f FeedLink) KindClass() string {
	return strings.ToLower(f.Kind)
}

// Secondary is the line shown under the title.
func (f FeedLink) Secondary() string {
	if f.Subtitle != "" {
		return f.Subtitle
	}
	return f.Href
}

type section struct {
	Title string
	Hint  string
	Feeds []FeedLink
}

type page struct {
	SiteTitle  string
	Updated    string
	StatusHref string
	Sections   []section
}

// BuildHTML renders the directory page. Feeds are grouped into Cineplexx,
// Telegram and, when present, Other.
func BuildHTML(feeds []FeedLink, siteTitle string, lastUpdated time.Time, statusHref string) ([]byte, error) {
	var cineplexx, telegram, other []FeedLink
	for _, f := range feeds {
		switch strings.ToLower(f.Kind) {
		case KindCineplexx:
			cineplexx = append(cineplexx, f)
		case KindTelegram:
			telegram = append(telegram, f)
		default:
			other = append(other, f)
		}
	}

	p := page{
		SiteTitle:  siteTitle,
		Updated:    formatUpdated(lastUpdated),
		StatusHref: statusHref,
		Sections: []section{
			{Title: "Cineplexx", Hint: "Cinema feeds generated by the repertoire scraper.", Feeds: cineplexx},
			{Title: "Telegram", Hint: "Public channel feeds parsed from t.me/s/<channel>.", Feeds: telegram},
		},
	}
	if len(other) > 0 {
		p.Sections = append(p.Sections, section{Title: "Other", Feeds: other})
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("index: render html: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildXML renders the directory as an RSS 2.0 feed with one item per feed.
func BuildXML(feeds []FeedLink, siteTitle string, lastUpdated time.Time, indexHref string) ([]byte, error) {
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}
	ch := rss.Channel{
		Title:       siteTitle,
		Link:        indexHref,
		Description: siteTitle + " feeds index",
		BuiltAt:     lastUpdated,
	}
	for _, f := range feeds {
		ch.Items = append(ch.Items, rss.Item{
			Title:       f.Title,
			Link:        f.Href,
			GUID:        f.Href,
			PubDate:     lastUpdated,
			Description: f.Subtitle,
		})
	}
	out, err := rss.BuildChannelFeed(ch)
	if err != nil {
		return nil, fmt.Errorf("index: render xml: %w", err)
	}
	return out, nil
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
