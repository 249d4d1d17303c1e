// Package gateway serves the published feeds together with health, status
// and Prometheus endpoints.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/cineplexx-rss/internal/index"
)

// Gateway is the HTTP status server.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	tracker   *Tracker
	gatherer  prometheus.Gatherer
	server    *http.Server
	listener  net.Listener
	startedAt time.Time
}

// New creates a Gateway. A nil tracker or gatherer disables the matching
// data source.
func New(cfg Config, tracker *Tracker, gatherer prometheus.Gatherer, logger *slog.Logger) *Gateway {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Gateway{
		config:    cfg,
		logger:    logger.With("component", "gateway"),
		tracker:   tracker,
		gatherer:  gatherer,
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler without starting a server.
func (g *Gateway) Handler() http.Handler {
	return g.buildRouter()
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}
	g.listener = ln

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Stop shuts the server down gracefully with the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// lastStatus prefers the run recorded in process and falls back to the
// status file published in the served directory.
func (g *Gateway) lastStatus() (index.Status, bool) {
	if s, ok := g.tracker.Last(); ok {
		return s, true
	}
	if g.config.Dir == "" {
		return index.Status{}, false
	}
	s, err := readStatusFile(filepath.Join(g.config.Dir, index.StatusFile))
	if err != nil {
		return index.Status{}, false
	}
	return s, true
}
