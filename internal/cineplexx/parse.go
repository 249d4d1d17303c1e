package cineplexx

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// listItem is a film link found on a repertoire page.
type listItem struct {
	Title string
	URL   string
}

const (
	filmLinkSelector    = `a[href*="/film/"]`
	titleChildSelector  = ".movie-title,.movie__title,.film-title,.film__title"
	descTextSelector    = ".b-movie-description__text"
	descBlockSelector   = ".b-movie-description"
	sessionSelector     = "li[data-session-id]"
	cinemaWrapSelector  = `div[id^="data-"]`
	cinemaTitleSelector = "a.b-entity-content__title, a.b-entity-content__link"
)

// parseMovieList extracts unique film links from a repertoire page. The
// first title seen for a URL wins.
func parseMovieList(doc *goquery.Document, base *url.URL) []listItem {
	var items []listItem
	seen := make(map[string]struct{})

	doc.Find(filmLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "/film/") {
			return
		}

		title := linkTitle(a)
		if title == "" {
			return
		}

		u := filmURL(base, href)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		items = append(items, listItem{Title: title, URL: u})
	})
	return items
}

func linkTitle(a *goquery.Selection) string {
	img := a.Find("img").First()
	candidates := []func() string{
		a.Text,
		func() string { return a.AttrOr("aria-label", "") },
		func() string { return a.AttrOr("title", "") },
		func() string { return a.Find("[data-title]").First().AttrOr("data-title", "") },
		func() string { return a.Find(titleChildSelector).First().Text() },
		func() string { return img.AttrOr("alt", "") },
		func() string { return img.AttrOr("title", "") },
	}
	for _, c := range candidates {
		if s := strings.TrimSpace(c()); utf8.RuneCountInString(s) >= 2 {
			return s
		}
	}
	return ""
}

// filmURL resolves href against base and drops the query string.
func filmURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	return u.String()
}

// parseDescription returns the film synopsis, preferring the paragraph
// blocks over the whole description container.
func parseDescription(doc *goquery.Document) string {
	var parts []string
	doc.Find(descTextSelector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	desc := strings.Join(parts, "\n\n")
	if desc == "" {
		desc = doc.Find(descBlockSelector).First().Text()
	}
	return movie.NormalizeSpace(desc)
}

// parseSessions extracts the screenings listed on a film page. Date is
// left empty; the caller knows which date was requested.
func parseSessions(doc *goquery.Document, base *url.URL) []movie.Session {
	pageCinema := strings.TrimSpace(doc.Find(cinemaTitleSelector).First().Text())

	var sessions []movie.Session
	doc.Find(sessionSelector).Each(func(_ int, li *goquery.Selection) {
		s := movie.Session{
			SessionID:   li.AttrOr("data-session-id", ""),
			Time:        strings.TrimSpace(li.Find("p.l-tickets__item-time").First().Text()),
			Hall:        strings.TrimSpace(li.Find("p.l-tickets__item-cinema").First().Text()),
			PurchaseURL: purchaseURL(base, li.Find("a[href]").First().AttrOr("href", "")),
		}
		li.Find("p.l-tickets__item-info").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			s.Info = strings.TrimSpace(p.Text())
			return s.Info == ""
		})

		if id, ok := li.Closest(cinemaWrapSelector).Attr("id"); ok {
			s.CinemaName = strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(id, "data-"), "-", " "))
		}
		if s.CinemaName == "" {
			s.CinemaName = pageCinema
		}
		sessions = append(sessions, s)
	})
	return sessions
}

func purchaseURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return base.Scheme + "://" + base.Host + href
	default:
		return href
	}
}

// assembleSessions walks dates in order and flattens their sessions,
// stopping at maxSessions in total and before a date that would exceed
// maxDates distinct dates.
func assembleSessions(dates []string, perDate [][]movie.Session, maxSessions, maxDates int) []movie.Session {
	var out []movie.Session
	distinct := make(map[string]struct{})

	for i, date := range dates {
		if len(out) >= maxSessions {
			break
		}
		if i >= len(perDate) || len(perDate[i]) == 0 {
			continue
		}
		if len(out) > 0 && len(distinct) >= maxDates {
			break
		}
		for _, s := range perDate[i] {
			if len(out) >= maxSessions {
				break
			}
			s.Date = date
			out = append(out, s)
			distinct[date] = struct{}{}
		}
	}
	return out
}
