package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
)

// channelName matches public Telegram channel usernames.
var channelName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Worker.IntervalMinutes < 1 {
		errs = append(errs, fmt.Errorf("config: worker.interval_minutes must be >= 1, got %d", cfg.Worker.IntervalMinutes))
	}
	if cfg.Worker.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Worker.Cron); err != nil {
			errs = append(errs, fmt.Errorf("config: worker.cron %q: %w", cfg.Worker.Cron, err))
		}
	}

	errs = append(errs, validateCineplexx(cfg.Cineplexx)...)

	switch cfg.Output.StateBackend {
	case StateBackendJSON, StateBackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("config: output.state_backend must be %q or %q, got %q",
			StateBackendJSON, StateBackendSQLite, cfg.Output.StateBackend))
	}
	if cfg.Output.Dir == "" {
		errs = append(errs, errors.New("config: output.dir is required"))
	}
	if cfg.Output.RSSFilename == "" {
		errs = append(errs, errors.New("config: output.rss_filename is required"))
	}

	for i, name := range cfg.Telegram.Channels {
		if !channelName.MatchString(name) {
			errs = append(errs, fmt.Errorf("config: telegram.channels[%d]: invalid channel name %q", i, name))
		}
	}

	return errors.Join(errs...)
}

func validateCineplexx(c CineplexxConfig) []error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: cineplexx.base_url must be an absolute http(s) URL, got %q", c.BaseURL))
	}

	switch c.DateMode {
	case DateModeToday:
	case DateModeFixed:
		if c.FixedDate == "" {
			errs = append(errs, errors.New("config: cineplexx.date_mode is fixed but fixed_date is empty"))
		} else if _, err := time.Parse("2006-01-02", c.FixedDate); err != nil {
			errs = append(errs, fmt.Errorf("config: cineplexx.fixed_date %q: want YYYY-MM-DD", c.FixedDate))
		}
	default:
		errs = append(errs, fmt.Errorf("config: cineplexx.date_mode must be %q or %q, got %q",
			DateModeToday, DateModeFixed, c.DateMode))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("config: cineplexx.timezone %q: %w", c.Timezone, err))
	}

	return errs
}
