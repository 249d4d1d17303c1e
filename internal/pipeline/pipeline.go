// Package pipeline runs one feed build: scrape the repertoire, record the
// changes in state and publish the feeds, the index and the run status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/cineplexx-rss/internal/cache"
	"github.com/flemzord/cineplexx-rss/internal/cineplexx"
	"github.com/flemzord/cineplexx-rss/internal/config"
	"github.com/flemzord/cineplexx-rss/internal/fsutil"
	"github.com/flemzord/cineplexx-rss/internal/index"
	"github.com/flemzord/cineplexx-rss/internal/metrics"
	"github.com/flemzord/cineplexx-rss/internal/rss"
	"github.com/flemzord/cineplexx-rss/internal/scrape"
	"github.com/flemzord/cineplexx-rss/internal/state"
	"github.com/flemzord/cineplexx-rss/internal/telegram"
	"github.com/flemzord/cineplexx-rss/internal/telemetry"
	"github.com/flemzord/cineplexx-rss/pkg/movie"
)

// ErrFixedDateMissing is returned when fixed date mode has no date.
var ErrFixedDateMissing = errors.New("pipeline: DATE_MODE=fixed but FIXED_DATE is empty")

// Deps are the collaborators of a run. Cache and Now are optional.
type Deps struct {
	Config *config.Config
	Getter scrape.Getter
	Cache  cache.Cache
	Store  state.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// Report summarizes a run.
type Report struct {
	Status  index.Status
	Added   []movie.Movie
	Removed []movie.Movie
}

// ResolveDate returns the repertoire date for now: the configured fixed
// date, or today in loc.
func ResolveDate(cfg *config.Config, now time.Time, loc *time.Location) (string, error) {
	if cfg.Cineplexx.DateMode == config.DateModeFixed {
		if cfg.Cineplexx.FixedDate == "" {
			return "", ErrFixedDateMissing
		}
		return cfg.Cineplexx.FixedDate, nil
	}
	return now.In(loc).Format(movie.DateLayout), nil
}

// Run builds every feed once. State is saved before any feed is written, so
// a publishing failure never loses detected changes. status.json is written
// even when the run fails.
func Run(ctx context.Context, d Deps) (rep Report, err error) {
	if d.Config == nil || d.Getter == nil || d.Store == nil {
		return Report{}, errors.New("pipeline: config, getter and store are required")
	}
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")
	nowFn := d.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	c := d.Cache
	if c == nil {
		c = cache.Null{}
	}

	ctx, span := telemetry.Start(ctx, "pipeline.run",
		attribute.String("cineplexx.location", cfg.Cineplexx.Location),
	)
	defer func() { telemetry.End(span, err) }()

	loc, err := cfg.TimeLocation()
	if err != nil {
		return Report{}, err
	}
	now := nowFn().In(loc)
	rep.Status = index.Status{
		StartedAt: now,
		Location:  cfg.Cineplexx.Location,
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return rep, fmt.Errorf("pipeline: create output dir: %w", err)
	}
	defer func() {
		rep.Status.FinishedAt = nowFn().In(loc)
		rep.Status.DurationMS = rep.Status.FinishedAt.Sub(rep.Status.StartedAt).Milliseconds()
		rep.Status.OK = err == nil
		if err != nil {
			rep.Status.Error = err.Error()
		}
		if werr := writeStatus(cfg.Output.Dir, rep.Status); werr != nil {
			err = errors.Join(err, werr)
		}
	}()

	date, err := ResolveDate(cfg, now, loc)
	if err != nil {
		return rep, err
	}
	rep.Status.Date = date

	st, err := d.Store.Load(ctx)
	if err != nil {
		return rep, fmt.Errorf("pipeline: load state: %w", err)
	}

	scraper := cineplexx.NewScraper(d.Getter, c, logger)
	current, stats, err := scraper.Scrape(ctx, cineplexx.ParamsFromConfig(cfg, date))
	if err != nil {
		return rep, fmt.Errorf("pipeline: scrape: %w", err)
	}
	rep.Status.Scrape = stats
	rep.Status.Movies = len(current)

	added, removed := state.Diff(st.Snapshot, current)
	rep.Added, rep.Removed = added, removed
	rep.Status.EventsAdded, rep.Status.EventsRemoved = len(added), len(removed)

	ts := now.Format(movie.TimestampLayout)
	if len(added) > 0 || len(removed) > 0 {
		state.AppendEvents(st, added, removed, ts, cfg.Cineplexx.Location, date)
		logger.Info("repertoire changed", "added", len(added), "removed", len(removed))
	}
	state.UpdateSnapshot(st, current, ts)
	state.TrimEvents(st, cfg.Output.MaxEventsInState)

	if err := d.Store.Save(ctx, st); err != nil {
		return rep, fmt.Errorf("pipeline: save state: %w", err)
	}

	metrics.Movies.Set(float64(len(current)))
	metrics.Events.WithLabelValues(string(movie.EventAdd)).Add(float64(len(added)))
	metrics.Events.WithLabelValues(string(movie.EventRemove)).Add(float64(len(removed)))

	cinema, err := writeCinemaFeed(cfg, now, date, st, current)
	if err != nil {
		return rep, err
	}
	rep.Status.Feeds = append(rep.Status.Feeds, cinema)
	rep.Status.Feeds = append(rep.Status.Feeds, buildTelegramFeeds(ctx, cfg, d.Getter, now, logger)...)

	if err := writeIndex(cfg, now, rep.Status.Feeds); err != nil {
		return rep, err
	}

	metrics.PipelineLastSuccess.Set(float64(now.Unix()))
	logger.Info("feeds written",
		"dir", cfg.Output.Dir,
		"movies", len(current),
		"events", len(st.Events),
		"feeds", len(rep.Status.Feeds),
	)
	return rep, nil
}

func writeCinemaFeed(cfg *config.Config, now time.Time, date string, st *state.State, current []movie.Movie) (index.FeedResult, error) {
	out, err := rss.BuildCinemaFeed(rss.FeedParams{
		Title:       cfg.Feed.Title,
		Link:        cfg.Feed.Link,
		Description: cfg.Feed.Description,
		Now:         now,
		Events:      st.Events,
		EventsLimit: cfg.Output.EventsLimit,
		Movies:      current,
		Snapshot:    st.Snapshot,
	})
	if err != nil {
		return index.FeedResult{}, fmt.Errorf("pipeline: build cinema feed: %w", err)
	}
	if err := fsutil.WriteFileAtomic(cfg.RSSPath(), out); err != nil {
		return index.FeedResult{}, fmt.Errorf("pipeline: write cinema feed: %w", err)
	}
	return index.FeedResult{
		FeedLink: index.FeedLink{
			Kind:     index.KindCineplexx,
			Title:    cfg.Feed.Title,
			Href:     cfg.Output.RSSFilename,
			Subtitle: fmt.Sprintf("location=%s, date=%s", cfg.Cineplexx.Location, date),
		},
		OK:    true,
		Items: len(current) + rss.PublishedEvents(len(st.Events), cfg.Output.EventsLimit),
	}, nil
}

// buildTelegramFeeds writes one feed per configured channel. A failed
// channel is logged and reported, never fatal.
func buildTelegramFeeds(ctx context.Context, cfg *config.Config, getter scrape.Getter, now time.Time, logger *slog.Logger) []index.FeedResult {
	results := make([]index.FeedResult, 0, len(cfg.Telegram.Channels))
	for _, name := range cfg.Telegram.Channels {
		file := name + ".xml"
		res := index.FeedResult{FeedLink: index.FeedLink{
			Kind:  index.KindTelegram,
			Title: "Telegram — t.me/" + name,
			Href:  file,
		}}

		err := writeTelegramFeed(ctx, cfg, getter, now, name, filepath.Join(cfg.Output.Dir, file), &res)
		if err != nil {
			logger.Warn("telegram channel skipped", "channel", name, "error", err)
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

func writeTelegramFeed(ctx context.Context, cfg *config.Config, getter scrape.Getter, now time.Time, name, path string, res *index.FeedResult) error {
	ch, err := telegram.FetchChannel(ctx, getter, cfg.Telegram.BaseURL, name, cfg.Telegram.PostLimit)
	if err != nil {
		return err
	}
	out, err := rss.BuildChannelFeed(telegram.Feed(ch, now))
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, out); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	res.OK = true
	res.Items = len(ch.Posts)
	if ch.Description != "" {
		res.Subtitle = ch.Description
	}
	return nil
}

// writeIndex lists every feed that has a file in the output directory,
// including feeds kept from earlier runs whose refresh failed.
func writeIndex(cfg *config.Config, now time.Time, feeds []index.FeedResult) error {
	links := make([]index.FeedLink, 0, len(feeds))
	for _, f := range feeds {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, f.Href)); err != nil {
			continue
		}
		links = append(links, f.FeedLink)
	}

	page, err := index.BuildHTML(links, cfg.Feed.SiteTitle, now, index.StatusFile)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(cfg.Output.Dir, index.HTMLFile), page); err != nil {
		return fmt.Errorf("pipeline: write index: %w", err)
	}

	doc, err := index.BuildXML(links, cfg.Feed.SiteTitle, now, index.HTMLFile)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(cfg.Output.Dir, index.XMLFile), doc); err != nil {
		return fmt.Errorf("pipeline: write index feed: %w", err)
	}
	return nil
}

func writeStatus(dir string, s index.Status) error {
	out, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, index.StatusFile), out); err != nil {
		return fmt.Errorf("pipeline: write status: %w", err)
	}
	return nil
}
