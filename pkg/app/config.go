package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cineplexx-rss/internal/config"
	"github.com/flemzord/cineplexx-rss/internal/security"
)

const configName = "cineplexx-rss"

// LoadConfig resolves the configuration: defaults, then the YAML file at
// path (or the first file found by ResolveConfigPath), then .env, then the
// process environment. The result is validated.
func LoadConfig(path string, lookup config.LookupFunc, logger *slog.Logger) (*config.Config, error) {
	if path == "" {
		path, _ = ResolveConfigPath()
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := config.ApplyEnv(cfg, lookup, logger); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/cineplexx-rss/config.yaml → ~/.config/cineplexx-rss/config.yaml → ./cineplexx-rss.yaml
// Running without a file is allowed; the second result reports whether
// one was found.
func ResolveConfigPath() (string, bool) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, configName, "config.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", configName, "config.yaml"))
	}

	candidates = append(candidates, configName+".yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// newRedactor registers the secrets carried by cfg.
func newRedactor(cfg *config.Config) *security.Redactor {
	r := security.NewRedactor()
	r.AddURLCredentials(cfg.Cache.RedisURL)
	r.AddLiteral(cfg.HTTP.AuthToken)
	return r
}

// RenderConfig returns cfg as YAML with secrets redacted.
func RenderConfig(cfg *config.Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: encode config: %w", err)
	}
	return []byte(newRedactor(cfg).Redact(string(out))), nil
}
