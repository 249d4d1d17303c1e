package cineplexx

import (
	"sync/atomic"
	"time"
)

// Stats summarizes one Scrape call.
type Stats struct {
	Movies              int           `json:"movies"`
	CacheHits           int64         `json:"cache_hits"`
	CacheMisses         int64         `json:"cache_misses"`
	FilmPagesFetched    int64         `json:"film_pages_fetched"`
	ScheduleEnabled     bool          `json:"schedule_enabled"`
	ScheduleCacheHits   int64         `json:"schedule_cache_hits"`
	ScheduleCacheMisses int64         `json:"schedule_cache_misses"`
	DatesProbed         int64         `json:"dates_probed"`
	DatesWithSessions   int64         `json:"dates_with_sessions"`
	SessionsFound       int64         `json:"sessions_found"`
	Duration            time.Duration `json:"duration_ns"`
}

// counters accumulates Stats from concurrent workers.
type counters struct {
	cacheHits           atomic.Int64
	cacheMisses         atomic.Int64
	filmPagesFetched    atomic.Int64
	scheduleCacheHits   atomic.Int64
	scheduleCacheMisses atomic.Int64
	datesProbed         atomic.Int64
	datesWithSessions   atomic.Int64
	sessionsFound       atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		CacheHits:           c.cacheHits.Load(),
		CacheMisses:         c.cacheMisses.Load(),
		FilmPagesFetched:    c.filmPagesFetched.Load(),
		ScheduleCacheHits:   c.scheduleCacheHits.Load(),
		ScheduleCacheMisses: c.scheduleCacheMisses.Load(),
		DatesProbed:         c.datesProbed.Load(),
		DatesWithSessions:   c.datesWithSessions.Load(),
		SessionsFound:       c.sessionsFound.Load(),
	}
}
