package config

import (
	"strings"
	"testing"
)

func TestValidate_Default(t *testing.T) {
	t.Parallel()

	if err := Validate(Default()); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero interval", func(c *Config) { c.Worker.IntervalMinutes = 0 }, "interval_minutes"},
		{"bad cron", func(c *Config) { c.Worker.Cron = "not a cron" }, "worker.cron"},
		{"relative base url", func(c *Config) { c.Cineplexx.BaseURL = "/cinemas" }, "base_url"},
		{"fixed without date", func(c *Config) { c.Cineplexx.DateMode = DateModeFixed }, "fixed_date is empty"},
		{"fixed bad date", func(c *Config) {
			c.Cineplexx.DateMode = DateModeFixed
			c.Cineplexx.FixedDate = "05.01.2026"
		}, "YYYY-MM-DD"},
		{"unknown date mode", func(c *Config) { c.Cineplexx.DateMode = "tomorrow" }, "date_mode"},
		{"bad timezone", func(c *Config) { c.Cineplexx.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad backend", func(c *Config) { c.Output.StateBackend = "postgres" }, "state_backend"},
		{"empty out dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"bad channel", func(c *Config) { c.Telegram.Channels = []string{"ok_name", "bad name"} }, "telegram.channels[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Worker.IntervalMinutes = -1
	cfg.Output.StateBackend = "csv"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "interval_minutes") || !strings.Contains(err.Error(), "state_backend") {
		t.Errorf("error should mention both problems: %v", err)
	}
}

func TestValidate_FixedDate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Cineplexx.DateMode = DateModeFixed
	cfg.Cineplexx.FixedDate = "2026-01-05"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
