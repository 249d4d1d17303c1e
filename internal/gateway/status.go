package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/cineplexx-rss/internal/index"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime  int64         `json:"uptime_seconds"`
	Runs    RunCounters   `json:"runs"`
	LastRun *index.Status `json:"last_run"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime: int64(time.Since(g.startedAt).Seconds()),
			Runs:   g.tracker.Snapshot(),
		}
		if last, ok := g.lastStatus(); ok {
			resp.LastRun = &last
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// handleStatusFile returns an http.HandlerFunc for GET /status.json, the
// file the index page links to.
func (g *Gateway) handleStatusFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last, ok := g.lastStatus()
		if !ok {
			http.NotFound(w, r)
			return
		}
		out, err := last.Marshal()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
	}
}
