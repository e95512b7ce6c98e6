// Package metrics exposes Prometheus instrumentation for the insights
// ingestion client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors for the ingestion core.
type Metrics struct {
	// Client metrics
	RequestsTotal  *prometheus.CounterVec
	RetriesTotal   prometheus.Counter
	PagesFetched   prometheus.Counter
	RowsIngested   prometheus.Counter
	RowsDeduped    prometheus.Counter
	PartialResults prometheus.Counter

	// Resilience metrics
	CircuitState     prometheus.Gauge
	RateBudgetHourly prometheus.Gauge
	RateBudgetDaily  prometheus.Gauge
	RateLimitWaits   prometheus.Counter

	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CoalescedCalls prometheus.Counter
}

// New creates the collectors and registers them on the given registerer.
// A nil registerer leaves the collectors unregistered, which tests use to
// avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "api_requests_total",
			Help:      "Upstream API requests by outcome kind.",
		}, []string{"outcome"}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "api_retries_total",
			Help:      "Retry attempts against the upstream API.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "pages_fetched_total",
			Help:      "Insights pages fetched.",
		}),
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "rows_ingested_total",
			Help:      "Raw insight rows accepted after validation.",
		}),
		RowsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "rows_deduplicated_total",
			Help:      "Duplicate rows discarded across paginated responses.",
		}),
		PartialResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "partial_results_total",
			Help:      "Fetches that returned partial data after a failure.",
		}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adinsights",
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
		RateBudgetHourly: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adinsights",
			Name:      "rate_budget_hourly_used",
			Help:      "Calls used in the rolling hourly window.",
		}),
		RateBudgetDaily: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adinsights",
			Name:      "rate_budget_daily_used",
			Help:      "Calls used in the rolling daily window.",
		}),
		RateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "rate_limit_waits_total",
			Help:      "Sleeps taken because the rate budget was exhausted.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "response_cache_hits_total",
			Help:      "Response cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "response_cache_misses_total",
			Help:      "Response cache misses.",
		}),
		CoalescedCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adinsights",
			Name:      "coalesced_requests_total",
			Help:      "Requests that shared an in-flight identical call.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RequestsTotal, m.RetriesTotal, m.PagesFetched, m.RowsIngested,
			m.RowsDeduped, m.PartialResults, m.CircuitState,
			m.RateBudgetHourly, m.RateBudgetDaily, m.RateLimitWaits,
			m.CacheHits, m.CacheMisses, m.CoalescedCalls,
		)
	}
	return m
}
