package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, "worker.yaml", `
worker:
  interval_minutes: 30
cineplexx:
  location: "3"
cache:
  film_ttl: 2h
telegram:
  channels: [durov]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Worker.IntervalMinutes != 30 {
		t.Errorf("IntervalMinutes = %d, want 30", cfg.Worker.IntervalMinutes)
	}
	if cfg.Cineplexx.Location != "3" {
		t.Errorf("Location = %q, want 3", cfg.Cineplexx.Location)
	}
	if cfg.Cache.FilmTTL != 2*time.Hour {
		t.Errorf("FilmTTL = %v, want 2h", cfg.Cache.FilmTTL)
	}
	if cfg.Cineplexx.BaseURL != "https://cineplexx.me" {
		t.Errorf("BaseURL = %q, want default", cfg.Cineplexx.BaseURL)
	}
	if len(cfg.Telegram.Channels) != 1 || cfg.Telegram.Channels[0] != "durov" {
		t.Errorf("Channels = %v", cfg.Telegram.Channels)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("WORKER_TEST_REDIS", "redis://cache:6379/1")
	path := writeFile(t, "worker.yaml", `
cache:
  redis_url: ${WORKER_TEST_REDIS}
output:
  dir: ${WORKER_TEST_UNSET_DIR:-/srv/out}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.RedisURL != "redis://cache:6379/1" {
		t.Errorf("RedisURL = %q", cfg.Cache.RedisURL)
	}
	if cfg.Output.Dir != "/srv/out" {
		t.Errorf("Output.Dir = %q, want default expansion", cfg.Output.Dir)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	path := writeFile(t, "worker.yaml", "cache:\n  redis_url: ${WORKER_TEST_MISSING_VAR}\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "WORKER_TEST_MISSING_VAR") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("WORKER_TEST_PRESET", "from-env")
	path := writeFile(t, ".env", "WORKER_TEST_DOTENV=from-file\nWORKER_TEST_PRESET=from-file\n")
	t.Cleanup(func() { _ = os.Unsetenv("WORKER_TEST_DOTENV") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("WORKER_TEST_DOTENV"); got != "from-file" {
		t.Errorf("WORKER_TEST_DOTENV = %q, want from-file", got)
	}
	if got := os.Getenv("WORKER_TEST_PRESET"); got != "from-env" {
		t.Errorf("WORKER_TEST_PRESET = %q, existing env should win", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()

	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func TestConfigPaths(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Output.Dir = "out"
	cfg.Cineplexx.Location = "2"

	if got, want := cfg.StatePath(), filepath.Join("out", "state_location_2.json"); got != want {
		t.Errorf("StatePath = %q, want %q", got, want)
	}
	cfg.Output.StateBackend = StateBackendSQLite
	if got, want := cfg.StatePath(), filepath.Join("out", "state_location_2.db"); got != want {
		t.Errorf("StatePath = %q, want %q", got, want)
	}
	if got, want := cfg.RSSPath(), filepath.Join("out", "cineplexx_rss.xml"); got != want {
		t.Errorf("RSSPath = %q, want %q", got, want)
	}
}
