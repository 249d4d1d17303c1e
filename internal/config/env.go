package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval is returned when INTERVAL_MINUTES is not a positive integer.
var ErrInvalidInterval = errors.New("config: INTERVAL_MINUTES must be a positive integer")

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Unset or empty
// variables leave the current value untouched. Malformed values are logged
// and ignored, except INTERVAL_MINUTES which is fatal.
func ApplyEnv(cfg *Config, lookup LookupFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	e := envReader{lookup: lookup, logger: logger}

	if raw, ok := e.get("INTERVAL_MINUTES"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: got %q", ErrInvalidInterval, raw)
		}
		cfg.Worker.IntervalMinutes = n
	}
	e.str("WORKER_COMMAND", &cfg.Worker.Command)
	e.str("WORKER_CRON", &cfg.Worker.Cron)
	e.str("LOG_LEVEL", &cfg.Log.Level)

	c := &cfg.Cineplexx
	if e.str("BASE_URL", &c.BaseURL) {
		c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	}
	e.str("LOCATION", &c.Location)
	if e.str("DATE_MODE", &c.DateMode) {
		c.DateMode = strings.ToLower(c.DateMode)
	}
	e.str("FIXED_DATE", &c.FixedDate)
	e.str("TIMEZONE", &c.Timezone)
	e.positive("MAX_FILM_PAGES_CONCURRENCY", &c.MaxFilmPagesConcurrency)

	s := &cfg.Schedule
	e.boolean("SCHEDULE_ENABLED", &s.Enabled)
	e.positive("SCHEDULE_MAX_DAYS_AHEAD", &s.MaxDaysAhead)
	e.positive("SCHEDULE_MAX_SESSIONS_PER_MOVIE", &s.MaxSessionsPerMovie)
	e.positive("SCHEDULE_MAX_DATES_PER_MOVIE", &s.MaxDatesPerMovie)
	e.positive("SCHEDULE_CONCURRENCY", &s.Concurrency)

	ca := &cfg.Cache
	e.str("REDIS_URL", &ca.RedisURL)
	var enabled bool
	if e.boolean("CACHE_ENABLED", &enabled) {
		ca.Enabled = &enabled
	}
	e.seconds("CINEPLEXX_FILM_CACHE_TTL_SECONDS", &ca.FilmTTL)
	e.seconds("CINEPLEXX_CACHE_NEGATIVE_TTL_SECONDS", &ca.FilmNegativeTTL)
	e.seconds("SCHEDULE_CACHE_TTL_SECONDS", &ca.ScheduleTTL)
	e.seconds("SCHEDULE_CACHE_NEGATIVE_TTL_SECONDS", &ca.ScheduleNegativeTTL)

	o := &cfg.Output
	e.str("OUT_DIR", &o.Dir)
	e.str("RSS_FILENAME", &o.RSSFilename)
	e.integer("EVENTS_LIMIT", &o.EventsLimit)
	e.positive("MAX_EVENTS_IN_STATE", &o.MaxEventsInState)
	if e.str("STATE_BACKEND", &o.StateBackend) {
		o.StateBackend = strings.ToLower(o.StateBackend)
	}

	f := &cfg.Feed
	e.str("FEED_TITLE", &f.Title)
	e.str("FEED_LINK", &f.Link)
	e.str("FEED_DESCRIPTION", &f.Description)
	e.str("SITE_TITLE", &f.SiteTitle)

	if raw, ok := e.get("TELEGRAM_CHANNELS"); ok {
		cfg.Telegram.Channels = splitList(raw)
	}
	e.integer("TELEGRAM_POST_LIMIT", &cfg.Telegram.PostLimit)

	e.str("HTTP_ADDR", &cfg.HTTP.Addr)
	e.str("HTTP_AUTH_TOKEN", &cfg.HTTP.AuthToken)
	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	e.str("OTEL_SERVICE_NAME", &cfg.Telemetry.ServiceName)

	return nil
}

// envReader applies individual variables with lenient parsing.
type envReader struct {
	lookup LookupFunc
	logger *slog.Logger
}

func (e envReader) get(name string) (string, bool) {
	raw, ok := e.lookup(name)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}

func (e envReader) invalid(name, raw string, current any) {
	e.logger.Warn("invalid environment value, keeping current", "name", name, "value", raw, "current", current)
}

func (e envReader) str(name string, dst *string) bool {
	raw, ok := e.get(name)
	if ok {
		*dst = raw
	}
	return ok
}

func (e envReader) integer(name string, dst *int) bool {
	raw, ok := e.get(name)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.invalid(name, raw, *dst)
		return false
	}
	*dst = n
	return true
}

// positive accepts integers >= 1 only.
func (e envReader) positive(name string, dst *int) bool {
	raw, ok := e.get(name)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		e.invalid(name, raw, *dst)
		return false
	}
	*dst = n
	return true
}

func (e envReader) seconds(name string, dst *time.Duration) bool {
	n := int(dst.Seconds())
	if !e.positive(name, &n) {
		return false
	}
	*dst = time.Duration(n) * time.Second
	return true
}

func (e envReader) boolean(name string, dst *bool) bool {
	raw, ok := e.get(name)
	if !ok {
		return false
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		e.invalid(name, raw, *dst)
		return false
	}
	return true
}

// splitList splits a comma separated list, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for item := range strings.SplitSeq(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
