// Package metrics exposes Prometheus collectors for the ingest service.
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
	ingestFilingsTotal            *prometheus.CounterVec
	ingestStoredBytesTotal        prometheus.Counter
	ingestPollCyclesTotal         prometheus.Counter
	ingestNormalizeFallbacksTotal prometheus.Counter
	dartAPIRequestsTotal          *prometheus.CounterVec
	dartWaitSeconds               *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestFilingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_filings_total",
				Help: "Total number of filings handled, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestStoredBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_stored_bytes_total",
				Help: "Total number of normalized bytes uploaded to the object store.",
			},
		)

		ingestPollCyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_poll_cycles_total",
				Help: "Total number of completed polling cycles.",
			},
		)

		ingestNormalizeFallbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_normalize_fallbacks_total",
				Help: "Total number of documents decoded by lossy fallback instead of a strict candidate.",
			},
		)

		dartAPIRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dart_api_requests_total",
				Help: "Total number of provider API responses, labeled by result status code.",
			},
			[]string{"status"},
		)

		dartWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dart_wait_seconds",
				Help:    "Histogram of status-driven waits (rate limit, maintenance, key errors).",
				Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
			},
			[]string{"reason"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Filing outcome labels.
const (
	OutcomeStored    = "stored"
	OutcomeSkipped   = "skipped"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// ObserveFiling increments the filing counter for the given outcome and,
// for stored filings, the stored-bytes counter.
func ObserveFiling(outcome string, storedBytes int) {
	ingestFilingsTotal.WithLabelValues(outcome).Inc()
	if storedBytes > 0 {
		ingestStoredBytesTotal.Add(float64(storedBytes))
	}
}

// ObservePollCycle increments the completed-cycle counter.
func ObservePollCycle() {
	ingestPollCyclesTotal.Inc()
}

// ObserveNormalizeFallback counts a document that needed lossy decoding.
func ObserveNormalizeFallback() {
	ingestNormalizeFallbacksTotal.Inc()
}

// ObserveAPIStatus increments the provider response counter for a result
// status code ("000", "020", ...).
func ObserveAPIStatus(status string) {
	dartAPIRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveWait records a status-driven sleep.
func ObserveWait(reason string, duration time.Duration) {
	dartWaitSeconds.WithLabelValues(reason).Observe(duration.Seconds())
}
