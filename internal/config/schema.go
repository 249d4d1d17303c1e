// Package config handles configuration defaults, YAML loading with
// environment variable expansion, the environment overlay, and structural
// validation for the worker.
package config

import (
	"fmt"
	"path/filepath"
	"time"
	_ "time/tzdata" // zone database for minimal container images
)

// Date modes.
const (
	DateModeToday = "today"
	DateModeFixed = "fixed"
)

// State backends.
const (
	StateBackendJSON   = "json"
	StateBackendSQLite = "sqlite"
)

// Config is the top-level configuration structure.
type Config struct {
	Worker    WorkerConfig    `yaml:"worker"`
	Log       LogConfig       `yaml:"log"`
	Cineplexx CineplexxConfig `yaml:"cineplexx"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Cache     CacheConfig     `yaml:"cache"`
	Output    OutputConfig    `yaml:"output"`
	Feed      FeedConfig      `yaml:"feed"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// WorkerConfig drives the scheduler loop.
type WorkerConfig struct {
	// IntervalMinutes is the pause between the end of one run and the start
	// of the next.
	IntervalMinutes int `yaml:"interval_minutes"`

	// Command is an external command line run on every cycle. Empty runs
	// the built-in feed pipeline in-process.
	Command string `yaml:"command"`

	// Cron is an optional 5-field cron expression. When set, the loop sleeps
	// until the next activation instead of a fixed interval.
	Cron string `yaml:"cron"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `yaml:"level"`
}

// CineplexxConfig selects what is scraped.
type CineplexxConfig struct {
	BaseURL                 string `yaml:"base_url"`
	Location                string `yaml:"location"`
	DateMode                string `yaml:"date_mode"`
	FixedDate               string `yaml:"fixed_date"`
	Timezone                string `yaml:"timezone"`
	MaxFilmPagesConcurrency int    `yaml:"max_film_pages_concurrency"`
}

// ScheduleConfig controls session (showtime) collection.
type ScheduleConfig struct {
	Enabled             bool `yaml:"enabled"`
	MaxDaysAhead        int  `yaml:"max_days_ahead"`
	MaxSessionsPerMovie int  `yaml:"max_sessions_per_movie"`
	MaxDatesPerMovie    int  `yaml:"max_dates_per_movie"`
	Concurrency         int  `yaml:"concurrency"`
}

// CacheConfig configures the optional Redis page cache.
type CacheConfig struct {
	// Enabled defaults to true when RedisURL is set.
	Enabled  *bool  `yaml:"enabled"`
	RedisURL string `yaml:"redis_url"`

	FilmTTL             time.Duration `yaml:"film_ttl"`
	FilmNegativeTTL     time.Duration `yaml:"film_negative_ttl"`
	ScheduleTTL         time.Duration `yaml:"schedule_ttl"`
	ScheduleNegativeTTL time.Duration `yaml:"schedule_negative_ttl"`
}

// IsEnabled reports whether the cache should be used.
func (c CacheConfig) IsEnabled() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return c.RedisURL != ""
}

// OutputConfig controls where feeds and state are written.
type OutputConfig struct {
	Dir              string `yaml:"dir"`
	RSSFilename      string `yaml:"rss_filename"`
	EventsLimit      int    `yaml:"events_limit"`
	MaxEventsInState int    `yaml:"max_events_in_state"`
	StateBackend     string `yaml:"state_backend"`
}

// FeedConfig holds channel metadata for the generated feeds.
type FeedConfig struct {
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
	SiteTitle   string `yaml:"site_title"`
}

// TelegramConfig lists public channels mirrored as feeds.
type TelegramConfig struct {
	Channels  []string `yaml:"channels"`
	PostLimit int      `yaml:"post_limit"`
	BaseURL   string   `yaml:"base_url"`
}

// HTTPConfig configures the optional status server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// AuthToken, when set, guards /status and /metrics with a bearer token.
	AuthToken       string        `yaml:"auth_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			IntervalMinutes: 360,
		},
		Log: LogConfig{Level: "info"},
		Cineplexx: CineplexxConfig{
			BaseURL:                 "https://cineplexx.me",
			Location:                "0",
			DateMode:                DateModeToday,
			Timezone:                "Europe/Podgorica",
			MaxFilmPagesConcurrency: 4,
		},
		Schedule: ScheduleConfig{
			Enabled:             true,
			MaxDaysAhead:        14,
			MaxSessionsPerMovie: 50,
			MaxDatesPerMovie:    10,
			Concurrency:         4,
		},
		Cache: CacheConfig{
			FilmTTL:             7 * 24 * time.Hour,
			FilmNegativeTTL:     time.Hour,
			ScheduleTTL:         6 * time.Hour,
			ScheduleNegativeTTL: time.Hour,
		},
		Output: OutputConfig{
			Dir:              "./out",
			RSSFilename:      "cineplexx_rss.xml",
			EventsLimit:      150,
			MaxEventsInState: 5000,
			StateBackend:     StateBackendJSON,
		},
		Feed: FeedConfig{
			Title:       "Cineplexx — репертуар",
			Link:        "https://cineplexx.me",
			Description: "Текущие фильмы в прокате",
			SiteTitle:   "MyRssHub",
		},
		Telegram: TelegramConfig{
			PostLimit: 5,
			BaseURL:   "https://t.me",
		},
		HTTP: HTTPConfig{
			ShutdownTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "cineplexx-rss",
		},
	}
}

// TimeLocation loads the configured IANA time zone.
func (c *Config) TimeLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Cineplexx.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Cineplexx.Timezone, err)
	}
	return loc, nil
}

// StatePath returns the per-location state file for the configured backend.
func (c *Config) StatePath() string {
	ext := ".json"
	if c.Output.StateBackend == StateBackendSQLite {
		ext = ".db"
	}
	return filepath.Join(c.Output.Dir, "state_location_"+c.Cineplexx.Location+ext)
}

// RSSPath returns the cinema feed file path.
func (c *Config) RSSPath() string {
	return filepath.Join(c.Output.Dir, c.Output.RSSFilename)
}
