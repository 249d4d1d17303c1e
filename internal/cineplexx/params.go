package cineplexx

import (
	"strings"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/config"
)

// Params selects what a Scrape call collects.
type Params struct {
	BaseURL  string
	Location string
	// Date is the YYYY-MM-DD start date. An unparseable value falls back to
	// today in UTC for the date range, but is still sent as-is when the
	// schedule is disabled.
	Date string

	FilmTTL         time.Duration
	FilmNegativeTTL time.Duration
	FilmConcurrency int

	Schedule ScheduleParams
}

// ScheduleParams controls session collection.
type ScheduleParams struct {
	Enabled             bool
	MaxDaysAhead        int
	MaxSessionsPerMovie int
	MaxDatesPerMovie    int
	Concurrency         int
	TTL                 time.Duration
	NegativeTTL         time.Duration
}

// ParamsFromConfig builds scrape parameters for date from cfg.
func ParamsFromConfig(cfg *config.Config, date string) Params {
	return Params{
		BaseURL:         strings.TrimRight(cfg.Cineplexx.BaseURL, "/"),
		Location:        cfg.Cineplexx.Location,
		Date:            date,
		FilmTTL:         cfg.Cache.FilmTTL,
		FilmNegativeTTL: cfg.Cache.FilmNegativeTTL,
		FilmConcurrency: cfg.Cineplexx.MaxFilmPagesConcurrency,
		Schedule: ScheduleParams{
			Enabled:             cfg.Schedule.Enabled,
			MaxDaysAhead:        cfg.Schedule.MaxDaysAhead,
			MaxSessionsPerMovie: cfg.Schedule.MaxSessionsPerMovie,
			MaxDatesPerMovie:    cfg.Schedule.MaxDatesPerMovie,
			Concurrency:         cfg.Schedule.Concurrency,
			TTL:                 cfg.Cache.ScheduleTTL,
			NegativeTTL:         cfg.Cache.ScheduleNegativeTTL,
		},
	}
}

func atLeastOne(n int) int64 {
	if n < 1 {
		return 1
	}
	return int64(n)
}
