// Package cineplexx scrapes the cinema repertoire, film synopses and
// screening times from the Cineplexx website.
package cineplexx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/flemzord/cineplexx-rss/internal/cache"
	"github.com/flemzord/cineplexx-rss/internal/metrics"
	"github.com/flemzord/cineplexx-rss/internal/scrape"
	"github.com/flemzord/cineplexx-rss/internal/telemetry"
	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// Sentinel errors returned by Scrape. Both mean the result must not
// replace the previous repertoire.
var (
	ErrListUnavailable = errors.New("cineplexx: movie list unavailable for every date")
	ErrNoMovies        = errors.New("cineplexx: no film links found")
)

// Cache entry markers.
const (
	markerNotFound   = "not_found"
	markerNoSessions = "no_sessions"
	cacheSource      = "cineplexx"
)

type filmEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
	FetchedAt   string `json:"fetched_at"`
	Source      string `json:"source"`
}

type sessionsEntry struct {
	Sessions  []movie.Session `json:"sessions"`
	Error     string          `json:"error,omitempty"`
	FetchedAt string          `json:"fetched_at"`
}

// Scraper collects the repertoire. It is safe for concurrent use.
type Scraper struct {
	getter scrape.Getter
	cache  cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewScraper creates a Scraper. A nil cache disables caching.
func NewScraper(getter scrape.Getter, c cache.Cache, logger *slog.Logger) *Scraper {
	if c == nil {
		c = cache.Null{}
	}
	return &Scraper{
		getter: getter,
		cache:  c,
		logger: logger.With("component", "cineplexx"),
		now:    time.Now,
	}
}

// run holds the state of one Scrape call.
type run struct {
	*Scraper
	p        Params
	base     *url.URL
	dates    []string
	filmSem  *semaphore.Weighted
	schedSem *semaphore.Weighted
	stats    counters
}

// Scrape fetches the repertoire for p. Per-film failures degrade to empty
// descriptions or sessions; only an unusable movie list is an error.
func (s *Scraper) Scrape(ctx context.Context, p Params) (movies []movie.Movie, stats Stats, err error) {
	ctx, span := telemetry.Start(ctx, "cineplexx.scrape",
		attribute.String("cineplexx.location", p.Location),
		attribute.String("cineplexx.date", p.Date),
	)
	defer func() { telemetry.End(span, err) }()

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("cineplexx: base url: %w", err)
	}

	start := time.Now()
	r := &run{
		Scraper:  s,
		p:        p,
		base:     base,
		dates:    s.dateRange(p),
		filmSem:  semaphore.NewWeighted(atLeastOne(p.FilmConcurrency)),
		schedSem: semaphore.NewWeighted(atLeastOne(p.Schedule.Concurrency)),
	}

	s.logger.Info("scrape started",
		"url", listURL(p.BaseURL, p.Location, p.Date),
		"location", p.Location,
		"date", p.Date,
	)

	items, err := r.movieList(ctx)
	if err != nil {
		return nil, Stats{}, err
	}

	built := make([]movie.Movie, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			m, err := r.buildMovie(gctx, item)
			if err != nil {
				return err
			}
			built[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	movies = make([]movie.Movie, 0, len(built))
	for _, m := range built {
		if m.Title != "" && m.URL != "" {
			movies = append(movies, m)
		}
	}
	movie.Sort(movies)

	stats = r.stats.snapshot()
	stats.Movies = len(movies)
	stats.ScheduleEnabled = p.Schedule.Enabled
	stats.Duration = time.Since(start)

	s.logger.Info("scrape finished",
		"duration", stats.Duration,
		"movies", stats.Movies,
		"cache_hits", stats.CacheHits,
		"cache_misses", stats.CacheMisses,
		"film_pages_fetched", stats.FilmPagesFetched,
		"schedule_enabled", stats.ScheduleEnabled,
		"schedule_cache_hits", stats.ScheduleCacheHits,
		"schedule_cache_misses", stats.ScheduleCacheMisses,
		"dates_probed", stats.DatesProbed,
		"dates_with_sessions", stats.DatesWithSessions,
		"sessions_found", stats.SessionsFound,
	)
	return movies, stats, nil
}

// dateRange returns the start date plus MaxDaysAhead following days.
func (s *Scraper) dateRange(p Params) []string {
	start, err := time.Parse(movie.DateLayout, p.Date)
	if err != nil {
		start = s.now().UTC()
	}
	days := max(p.Schedule.MaxDaysAhead, 0)
	dates := make([]string, 0, days+1)
	for offset := range days + 1 {
		dates = append(dates, start.AddDate(0, 0, offset).Format(movie.DateLayout))
	}
	return dates
}

func listURL(base, location, date string) string {
	return fmt.Sprintf("%s/cinemas?location=%s&date=%s", base, url.QueryEscape(location), url.QueryEscape(date))
}

// movieList collects film links for every probed date. Later dates
// overwrite earlier entries for the same URL.
func (r *run) movieList(ctx context.Context) ([]listItem, error) {
	dates := []string{r.p.Date}
	if r.p.Schedule.Enabled {
		dates = r.dates
	}

	var (
		order  []string
		byURL  = make(map[string]listItem)
		failed int
	)
	for _, date := range dates {
		u := listURL(r.p.BaseURL, r.p.Location, date)
		doc, err := r.getter.Get(ctx, u)
		metrics.PagesFetched.WithLabelValues("list").Inc()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			r.logger.Warn("movie list fetch failed", "date", date, "url", u, "error", err)
			continue
		}
		for _, item := range parseMovieList(doc, r.base) {
			if _, ok := byURL[item.URL]; !ok {
				order = append(order, item.URL)
			}
			byURL[item.URL] = item
		}
	}

	if failed == len(dates) {
		return nil, ErrListUnavailable
	}
	if len(order) == 0 {
		return nil, ErrNoMovies
	}

	items := make([]listItem, 0, len(order))
	for _, u := range order {
		items = append(items, byURL[u])
	}
	r.logger.Info("movie list collected", "dates", len(dates), "movies", len(items))
	return items, nil
}

// buildMovie resolves description and sessions for one list item. The
// only error it returns is context cancellation.
func (r *run) buildMovie(ctx context.Context, item listItem) (movie.Movie, error) {
	m := movie.Movie{Title: movie.NormalizeSpace(item.Title), URL: item.URL}

	title, desc, err := r.description(ctx, m.URL, m.Title)
	if err != nil {
		return movie.Movie{}, err
	}
	m.Title, m.Description = title, desc

	if r.p.Schedule.Enabled {
		sessions, err := r.sessions(ctx, m.URL)
		if err != nil {
			return movie.Movie{}, err
		}
		m.Sessions = sessions
	}
	return m, nil
}

func (r *run) description(ctx context.Context, filmURL, title string) (string, string, error) {
	key := cache.FilmKey(filmURL)

	var cached filmEntry
	hit, err := r.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		r.logger.Warn("cache get failed", "key", key, "error", err)
	}
	if hit && (cached.Description != "" || cached.Error != "") {
		r.stats.cacheHits.Add(1)
		metrics.CacheLookups.WithLabelValues("film", "hit").Inc()
		if cached.Title != "" {
			title = cached.Title
		}
		return title, cached.Description, nil
	}
	r.stats.cacheMisses.Add(1)
	metrics.CacheLookups.WithLabelValues("film", "miss").Inc()

	if err := r.filmSem.Acquire(ctx, 1); err != nil {
		return "", "", err
	}
	r.stats.filmPagesFetched.Add(1)
	metrics.PagesFetched.WithLabelValues("film").Inc()
	doc, err := r.getter.Get(ctx, filmURL)
	r.filmSem.Release(1)

	var desc string
	switch {
	case err != nil && ctx.Err() != nil:
		return "", "", ctx.Err()
	case err != nil:
		r.logger.Warn("film page fetch failed", "url", filmURL, "error", err)
	default:
		desc = parseDescription(doc)
	}

	entry := filmEntry{
		Title:       title,
		Description: desc,
		FetchedAt:   r.now().UTC().Format(time.RFC3339),
		Source:      cacheSource,
	}
	ttl := r.p.FilmTTL
	if desc == "" {
		r.logger.Warn("movie description missing", "url", filmURL)
		entry.Error = markerNotFound
		ttl = r.p.FilmNegativeTTL
	}
	r.cacheSet(ctx, key, entry, ttl)
	return title, desc, nil
}

func (r *run) sessions(ctx context.Context, filmURL string) ([]movie.Session, error) {
	perDate := make([][]movie.Session, len(r.dates))

	g, gctx := errgroup.WithContext(ctx)
	for i, date := range r.dates {
		g.Go(func() error {
			s, err := r.sessionsForDate(gctx, filmURL, date)
			if err != nil {
				return err
			}
			perDate[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assembleSessions(r.dates, perDate,
		r.p.Schedule.MaxSessionsPerMovie, r.p.Schedule.MaxDatesPerMovie), nil
}

func (r *run) sessionsForDate(ctx context.Context, filmURL, date string) ([]movie.Session, error) {
	key := cache.SessionsKey(filmURL, r.p.Location, date)

	var cached sessionsEntry
	hit, err := r.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		r.logger.Warn("cache get failed", "key", key, "error", err)
	}
	if hit {
		r.stats.scheduleCacheHits.Add(1)
		metrics.CacheLookups.WithLabelValues("sessions", "hit").Inc()
		r.countSessions(cached.Sessions)
		return cached.Sessions, nil
	}
	r.stats.scheduleCacheMisses.Add(1)
	metrics.CacheLookups.WithLabelValues("sessions", "miss").Inc()

	if err := r.schedSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	r.stats.datesProbed.Add(1)
	metrics.PagesFetched.WithLabelValues("sessions").Inc()
	pageURL := fmt.Sprintf("%s?date=%s&location=%s", filmURL, url.QueryEscape(date), url.QueryEscape(r.p.Location))
	doc, err := r.getter.Get(ctx, pageURL)
	r.schedSem.Release(1)

	var sessions []movie.Session
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		r.logger.Debug("sessions fetch failed", "url", pageURL, "error", err)
	default:
		sessions = parseSessions(doc, r.base)
	}

	entry := sessionsEntry{Sessions: sessions, FetchedAt: r.now().UTC().Format(time.RFC3339)}
	ttl := r.p.Schedule.TTL
	if len(sessions) == 0 {
		entry.Sessions = []movie.Session{}
		entry.Error = markerNoSessions
		ttl = r.p.Schedule.NegativeTTL
	}
	r.countSessions(sessions)
	r.cacheSet(ctx, key, entry, ttl)
	return sessions, nil
}

func (r *run) countSessions(s []movie.Session) {
	if len(s) == 0 {
		return
	}
	r.stats.datesWithSessions.Add(1)
	r.stats.sessionsFound.Add(int64(len(s)))
}

func (r *run) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := r.cache.SetJSON(ctx, key, v, ttl); err != nil {
		r.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
