// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlCyclesTotal      *prometheus.CounterVec
	gamesWrittenTotal     prometheus.Counter
	gamesSkippedTotal     prometheus.Counter
	taxonomyFailuresTotal prometheus.Counter
	pageFetchesInFlight   prometheus.Gauge
	fetchDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tfgs_crawl_cycles_total",
				Help: "Total crawl cycles, labeled by outcome.",
			},
			[]string{"status"},
		)

		gamesWrittenTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tfgs_games_written_total",
				Help: "Total games written across all cycles.",
			},
		)

		gamesSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tfgs_games_skipped_total",
				Help: "Total games skipped due to fetch or parse failures.",
			},
		)

		taxonomyFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tfgs_taxonomy_failures_total",
				Help: "Total taxonomy fetch failures across all cycles.",
			},
		)

		pageFetchesInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tfgs_page_fetches_in_flight",
				Help: "Number of page fetches currently in flight.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tfgs_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by page kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		)
	})
}

// Handler returns an http.Handler serving the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records the outcome of one crawl cycle.
func ObserveCycle(status string, written, skipped, taxonomyFailures int) {
	Init()
	crawlCyclesTotal.WithLabelValues(status).Inc()
	gamesWrittenTotal.Add(float64(written))
	gamesSkippedTotal.Add(float64(skipped))
	taxonomyFailuresTotal.Add(float64(taxonomyFailures))
}

// ObserveFetch records one page fetch duration.
func ObserveFetch(kind string, duration time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight fetch gauge.
func IncInFlight() {
	Init()
	pageFetchesInFlight.Inc()
}

// DecInFlight decrements the in-flight fetch gauge.
func DecInFlight() {
	Init()
	pageFetchesInFlight.Dec()
}
