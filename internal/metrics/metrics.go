// Package metrics declares the Prometheus collectors exported by the worker.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "cineplexx_rss"

// Run results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var WorkerRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "worker_runs_total",
		Help:      "worker cycles by result (success/failure)",
	},
	[]string{"result"},
)

var WorkerRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: Namespace,
	Name:      "worker_run_duration_seconds",
	Help:      "duration of one worker cycle (in seconds)",
	Buckets:   []float64{1, 5, 15, 30, 60, 60 * 2, 60 * 5, 60 * 15, 60 * 30},
})

var WorkerLastRun = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: Namespace,
	Name:      "worker_last_run_timestamp_seconds",
	Help:      "unix time the last worker cycle finished",
})

var PipelineLastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: Namespace,
	Name:      "pipeline_last_success_timestamp_seconds",
	Help:      "unix time of the last successful feed build",
})

var Movies = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: Namespace,
	Name:      "movies",
	Help:      "movies in the current repertoire",
})

var Events = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "events_total",
		Help:      "repertoire change events by type (add/remove)",
	},
	[]string{"type"},
)

var CacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_lookups_total",
		Help:      "page cache lookups by kind (film/sessions) and result (hit/miss)",
	},
	[]string{"kind", "result"},
)

var PagesFetched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "pages_fetched_total",
		Help:      "HTML pages fetched by kind (list/film/sessions/telegram)",
	},
	[]string{"kind"},
)

// Collectors returns every collector declared by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		WorkerRuns,
		WorkerRunDuration,
		WorkerLastRun,
		PipelineLastSuccess,
		Movies,
		Events,
		CacheLookups,
		PagesFetched,
	}
}

// Register adds the worker collectors to reg. Collectors that are already
// registered are left in place.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("metrics: register: %w", err)
		}
	}
	return nil
}
