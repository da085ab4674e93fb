package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SourceAttemptsTotal counts source invocations by outcome
	// (success, failure, rate_limited).
	SourceAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_source_attempts_total",
			Help: "Source invocations by outcome.",
		},
		[]string{"source", "outcome"},
	)

	SourceLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resolver_source_latency_seconds",
			Help:    "Latency of source fetch-and-parse calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// SourceBreakerOpen is 1 while a source is disabled by its breaker.
	SourceBreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resolver_source_breaker_open",
			Help: "1 while the source is disabled after repeated failures.",
		},
		[]string{"source"},
	)

	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_resolutions_total",
			Help: "Pipeline resolutions by result kind.",
		},
		[]string{"result"},
	)

	FetcherRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_fetcher_requests_total",
			Help: "Outbound requests by result (network, cached, error).",
		},
		[]string{"result"},
	)

	FetcherQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resolver_fetcher_queue_length",
			Help: "Requests waiting for the outbound worker.",
		},
	)
)

// Init registers all collectors once with the default registry.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			SourceAttemptsTotal,
			SourceLatencySeconds,
			SourceBreakerOpen,
			ResolutionsTotal,
			FetcherRequestsTotal,
			FetcherQueueLength,
		)
	})
}
