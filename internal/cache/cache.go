// Package cache stores scraped page fragments between runs. The cache is
// optional: every caller treats an error as a miss and carries on.
package cache

import (
	"context"
	"crypto/sha1" //nolint:gosec // key derivation, not security
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/config"
)

const keyPrefix = "cineplexx:"

// Cache is a JSON value store with per-entry TTL.
type Cache interface {
	// GetJSON decodes the value at key into dst. It reports false when the
	// key is absent.
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	// SetJSON encodes v and stores it under key for ttl.
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Close() error
}

// Null is a Cache that stores nothing.
type Null struct{}

var _ Cache = Null{}

// GetJSON always misses.
func (Null) GetJSON(context.Context, string, any) (bool, error) { return false, nil }

// SetJSON discards v.
func (Null) SetJSON(context.Context, string, any, time.Duration) error { return nil }

// Close is a no-op.
func (Null) Close() error { return nil }

// New returns the cache described by cfg. It never fails: a disabled or
// unreachable cache degrades to Null with a log line.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) Cache {
	logger = logger.With("component", "cache")

	if !cfg.IsEnabled() {
		logger.Info("cache disabled")
		return Null{}
	}
	if cfg.RedisURL == "" {
		logger.Warn("cache enabled but REDIS_URL is empty, continuing without cache")
		return Null{}
	}

	r, err := OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("cache unavailable, continuing without cache", "error", err)
		return Null{}
	}
	logger.Info("cache connected")
	return r
}

// FilmKey is the key for a film page description.
func FilmKey(filmURL string) string {
	return keyPrefix + "film:" + digest(filmURL)
}

// SessionsKey is the key for the sessions of a film at a location on a date.
func SessionsKey(filmURL, location, date string) string {
	return keyPrefix + "sessions:" + digest(strings.Join([]string{filmURL, location, date}, "|"))
}

func digest(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // key derivation, not security
	return hex.EncodeToString(sum[:])
}
