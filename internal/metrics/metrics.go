// Package metrics exposes Prometheus counters for the enrichment pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lender_enrich"

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
	OutcomeBlocked     = "blocked"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCached      = "cached"
	OutcomeDNC         = "dnc"
	OutcomeClear       = "clear"
	OutcomeInvalid     = "invalid"
	OutcomeEnriched    = "enriched"
	OutcomeNotFound    = "not_found"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	searchRequests  *prometheus.CounterVec
	scrapeRequests  *prometheus.CounterVec
	dncLookups      *prometheus.CounterVec
	recordsEnriched *prometheus.CounterVec
	enrichDuration  prometheus.Histogram
}

// New registers the pipeline collectors on a fresh registry, along with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		searchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search API queries by outcome",
		}, []string{"outcome"}),
		scrapeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_requests_total",
			Help:      "Page fetches by outcome",
		}, []string{"outcome"}),
		dncLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dnc_lookups_total",
			Help:      "Do-not-call lookups by outcome",
		}, []string{"outcome"}),
		recordsEnriched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_enriched_total",
			Help:      "Records processed by the orchestrator by outcome",
		}, []string{"outcome"}),
		enrichDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_enrich_duration_seconds",
			Help:      "Wall time spent enriching one record, pacing included",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~64s
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Search(outcome string) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Scrape(outcome string) {
	if m == nil {
		return
	}
	m.scrapeRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DNC(outcome string) {
	if m == nil {
		return
	}
	m.dncLookups.WithLabelValues(outcome).Inc()
}

// Record counts one orchestrated record and how long it took.
func (m *Metrics) Record(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recordsEnriched.WithLabelValues(outcome).Inc()
	m.enrichDuration.Observe(elapsed.Seconds())
}
