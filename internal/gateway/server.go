package gateway

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/cineplexx-rss/internal/index"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())

	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth))
		}
		r.Get("/status", g.handleStatus())
		r.Get("/"+index.StatusFile, g.handleStatusFile())
		if g.gatherer != nil {
			r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
		}
	})

	if g.config.Dir != "" {
		r.Handle("/*", publishedFiles(g.config.Dir))
	}

	return r
}

// publishedFiles serves the feeds and the index page from dir. Anything else
// in the output directory stays private and directories are never listed.
// status.json goes through the authenticated status route instead.
func publishedFiles(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name == "/" {
			name = "/index.html"
		}
		name = strings.TrimPrefix(name, "/")
		if strings.Contains(name, "/") || !published(name) {
			http.NotFound(w, r)
			return
		}

		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer func() { _ = f.Close() }()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, name, info.ModTime(), f)
	})
}

func published(name string) bool {
	return name == "index.html" || strings.HasSuffix(name, ".xml")
}
