// Package telegram mirrors public Telegram channels by scraping their web
// preview at t.me/s/<channel>.
package telegram

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/cineplexx-rss/internal/metrics"
	"github.com/flemzord/cineplexx-rss/internal/rss"
	"github.com/flemzord/cineplexx-rss/internal/scrape"
	"github.com/flemzord/cineplexx-rss/internal/telemetry"
	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// DefaultBaseURL is the public Telegram web host.
const DefaultBaseURL = "https://t.me"

const maxTitleRunes = 80

// Post is a single channel message.
type Post struct {
	ID   string
	Text string
	HTML string
	URL  string
	Time time.Time
}

// Channel is a scraped channel with its newest posts first.
type Channel struct {
	Name        string
	Title       string
	Description string
	Link        string
	Posts       []Post
}

// FetchChannel scrapes the newest limit posts of the public channel name.
func FetchChannel(ctx context.Context, getter scrape.Getter, baseURL, name string, limit int) (ch Channel, err error) {
	ctx, span := telemetry.Start(ctx, "telegram.fetch", attribute.String("telegram.channel", name))
	defer func() { telemetry.End(span, err) }()

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	link := baseURL + "/s/" + name

	doc, err := getter.Get(ctx, link)
	metrics.PagesFetched.WithLabelValues("telegram").Inc()
	if err != nil {
		return Channel{}, fmt.Errorf("telegram: fetch %s: %w", name, err)
	}
	return parseChannel(doc, baseURL, name, link, limit), nil
}

func parseChannel(doc *goquery.Document, baseURL, name, link string, limit int) Channel {
	ch := Channel{
		Name:        name,
		Title:       strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").First().Text()),
		Description: movie.NormalizeSpace(doc.Find(".tgme_channel_info_description").First().Text()),
		Link:        link,
	}
	if ch.Title == "" {
		ch.Title = "@" + name
	}

	doc.Find(".tgme_widget_message[data-post]").Each(func(_ int, s *goquery.Selection) {
		dataPost := s.AttrOr("data-post", "")
		if dataPost == "" {
			return
		}
		body := s.Find(".tgme_widget_message_text").First()
		htmlBody, _ := body.Html()
		p := Post{
			ID:   dataPost[strings.LastIndex(dataPost, "/")+1:],
			Text: strings.TrimSpace(textWithBreaks(body)),
			HTML: strings.TrimSpace(htmlBody),
			URL:  baseURL + "/" + dataPost,
		}
		if dt, ok := s.Find("time[datetime]").First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, dt); err == nil {
				p.Time = t
			}
		}
		ch.Posts = append(ch.Posts, p)
	})

	// The preview lists posts oldest first.
	slices.Reverse(ch.Posts)
	if limit > 0 && len(ch.Posts) > limit {
		ch.Posts = ch.Posts[:limit]
	}
	return ch
}

// textWithBreaks returns the text of s with <br> rendered as newlines.
func textWithBreaks(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find("br").ReplaceWithHtml("\n")
	return clone.Text()
}

// Feed converts ch into an RSS channel. Posts without a timestamp use
// builtAt.
func Feed(ch Channel, builtAt time.Time) rss.Channel {
	out := rss.Channel{
		Title:       "Telegram — " + ch.Title,
		Link:        ch.Link,
		Description: ch.Description,
		BuiltAt:     builtAt,
	}
	if out.Description == "" {
		out.Description = "Public posts from t.me/" + ch.Name
	}
	for _, p := range ch.Posts {
		pub := p.Time
		if pub.IsZero() {
			pub = builtAt
		}
		out.Items = append(out.Items, rss.Item{
			Title:       postTitle(p),
			Link:        p.URL,
			GUID:        p.URL,
			PermaLink:   true,
			PubDate:     pub,
			Description: p.Text,
			HTML:        p.HTML,
		})
	}
	return out
}

// postTitle is the first line of the post, shortened.
func postTitle(p Post) string {
	line, _, _ := strings.Cut(p.Text, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "Post " + p.ID
	}
	if utf8.RuneCountInString(line) > maxTitleRunes {
		runes := []rune(line)
		line = strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
	}
	return line
}
