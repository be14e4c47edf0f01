package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency. Shared across all routes.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "rankforge",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// ScoreUpdatesTotal counts score submissions by update mode and result
// (written, skipped, error).
var ScoreUpdatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rankforge",
		Subsystem: "scoring",
		Name:      "updates_total",
		Help:      "Total number of score submissions by update mode and result.",
	},
	[]string{"mode", "result"},
)

// ScoreWriteDuration tracks the latency of a single UpdateScore call, from
// the quota check through the rank read-back.
var ScoreWriteDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "rankforge",
		Subsystem: "scoring",
		Name:      "write_duration_seconds",
		Help:      "Single score update duration in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
)

// RateLimitRejectionsTotal counts requests rejected by the token-bucket limiter.
var RateLimitRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rankforge",
		Subsystem: "gateway",
		Name:      "rate_limit_rejections_total",
		Help:      "Total number of requests rejected by the rate limiter.",
	},
	[]string{"tenant_id"},
)

// AuthCacheHitsTotal counts API-key auth cache hits and misses.
var AuthCacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rankforge",
		Subsystem: "gateway",
		Name:      "auth_cache_total",
		Help:      "Total number of API-key auth cache lookups by outcome.",
	},
	[]string{"outcome"},
)

// QuotaRejectionsTotal counts requests rejected for exceeding a plan limit.
var QuotaRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rankforge",
		Subsystem: "billing",
		Name:      "quota_rejections_total",
		Help:      "Total number of requests rejected for exceeding a plan quota.",
	},
	[]string{"tenant_id", "resource"},
)

// EventsPublishedTotal counts events published to the stream by subject.
var EventsPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rankforge",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total number of events published, by subject.",
	},
	[]string{"subject"},
)

// EventsProcessedTotal counts events the Worker has consumed, by outcome.
var EventsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rankforge",
		Subsystem: "events",
		Name:      "processed_total",
		Help:      "Total number of events processed by the worker, by subject and outcome.",
	},
	[]string{"subject", "outcome"},
)

// All returns RankForge's domain-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		ScoreUpdatesTotal,
		ScoreWriteDuration,
		RateLimitRejectionsTotal,
		AuthCacheHitsTotal,
		QuotaRejectionsTotal,
		EventsPublishedTotal,
		EventsProcessedTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional collectors passed
// as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
