// Package metrics exports cache and watcher activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smileynet/benchdash/internal/cache"
)

const namespace = "benchdash"

// Recorder holds the collectors for one process. It implements
// cache.Recorder and the watcher's event observer.
type Recorder struct {
	registry *prometheus.Registry

	runs          prometheus.Gauge
	hardware      prometheus.Gauge
	gitrefs       prometheus.Gauge
	loads         prometheus.Counter
	loadDuration  prometheus.Histogram
	skipped       *prometheus.CounterVec
	watchEvents   *prometheus.CounterVec
	reloadsFired  prometheus.Counter
	reloadFailure prometheus.Counter
}

var _ cache.Recorder = (*Recorder)(nil)

// New creates a Recorder registered on its own registry, alongside the
// standard Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_runs",
			Help:      "Number of benchmark runs in the cache",
		}),
		hardware: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_hardware",
			Help:      "Number of distinct hardware identifiers in the cache",
		}),
		gitrefs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_gitrefs",
			Help:      "Number of distinct gitrefs in the cache",
		}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_loads_total",
			Help:      "Total number of completed cache loads",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_load_duration_seconds",
			Help:      "Time taken to sweep the results directory",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		}),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_skipped_total",
				Help:      "Total number of run directories skipped during loads",
			},
			[]string{"reason"},
		),
		watchEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_events_total",
				Help:      "Total number of qualifying file-system events observed",
			},
			[]string{"op"},
		),
		reloadsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_reloads_total",
			Help:      "Total number of debounced reloads fired by the watcher",
		}),
		reloadFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_reload_failures_total",
			Help:      "Total number of watcher-triggered reloads that failed",
		}),
	}

	r.registry.MustRegister(
		r.runs, r.hardware, r.gitrefs,
		r.loads, r.loadDuration, r.skipped,
		r.watchEvents, r.reloadsFired, r.reloadFailure,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveLoad records a completed cache load.
func (r *Recorder) ObserveLoad(d time.Duration, s cache.Stats) {
	r.loads.Inc()
	r.loadDuration.Observe(d.Seconds())
	r.ObserveCounts(s)
}

// ObserveCounts sets the cached-size gauges.
func (r *Recorder) ObserveCounts(s cache.Stats) {
	r.runs.Set(float64(s.Runs))
	r.hardware.Set(float64(s.Hardware))
	r.gitrefs.Set(float64(s.Gitrefs))
}

// RunSkipped records a run directory that could not be cached.
func (r *Recorder) RunSkipped(reason string) {
	r.skipped.WithLabelValues(reason).Inc()
}

// WatchEvent records a qualifying file-system event.
func (r *Recorder) WatchEvent(op string) {
	r.watchEvents.WithLabelValues(op).Inc()
}

// ReloadFired records a debounced reload and whether it failed.
func (r *Recorder) ReloadFired(err error) {
	r.reloadsFired.Inc()
	if err != nil {
		r.reloadFailure.Inc()
	}
}

// Handler returns the HTTP handler serving the metrics in the exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
