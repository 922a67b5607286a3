// Package metrics exposes Prometheus instrumentation for the search
// pipeline, the catalog providers and the activity endpoints.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SearchServedTotal counts smart searches by cache outcome.
	SearchServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musichub_search_served_total",
			Help: "Smart searches served, by cache outcome",
		},
		[]string{"outcome"}, // "fresh", "stale", "stale_refresh", "miss"
	)

	// SearchRefreshTotal counts cache refresh computations by result.
	SearchRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musichub_search_refresh_total",
			Help: "Smart search refresh computations, by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	// UpstreamRequestsTotal counts catalog provider calls by outcome.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musichub_upstream_requests_total",
			Help: "Catalog provider requests, by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: "ok", "error"
	)

	// ActivityEventsTotal counts accepted activity log writes by type.
	ActivityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "musichub_activity_events_total",
			Help: "Activity events accepted, by type",
		},
		[]string{"type"},
	)

	// RerankDuration tracks the latency of one reranker pass.
	RerankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "musichub_rerank_duration_seconds",
			Help:    "Duration of a reranker pass in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)
)

// RecordSearchServed records a served smart search with its cache outcome.
func RecordSearchServed(outcome string) {
	SearchServedTotal.WithLabelValues(outcome).Inc()
}

// RecordSearchRefresh records a completed refresh computation.
func RecordSearchRefresh(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	SearchRefreshTotal.WithLabelValues(result).Inc()
}

// RecordUpstreamRequest records one provider round trip.
func RecordUpstreamRequest(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordActivityEvent records an accepted activity write.
func RecordActivityEvent(eventType string) {
	ActivityEventsTotal.WithLabelValues(eventType).Inc()
}

// ObserveRerank records the duration of a reranker pass.
func ObserveRerank(d time.Duration) {
	RerankDuration.Observe(d.Seconds())
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
