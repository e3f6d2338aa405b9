// Package telemetry exposes the Prometheus counters the pipeline's
// ambient collaborators emit into: audit durability, decision-cache
// effectiveness, and rate-limit pressure. None of these feed back into an
// admission decision; they are observability-only, per spec's own
// non-goal on this being a single-binary core rather than a full platform.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var AuditRecordsAppendedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "audit",
		Name:      "records_appended_total",
		Help:      "Total number of audit records successfully appended to the durable sink.",
	},
)

var AuditRecordsDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "audit",
		Name:      "records_dropped_total",
		Help:      "Total number of audit records dropped from the durable queue after exhausting retries.",
	},
)

var PolicyDecisionCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "policy",
		Name:      "decision_cache_total",
		Help:      "Total policy decisions served, partitioned by cache outcome.",
	},
	[]string{"outcome"}, // hit | miss
)

var RateLimitRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Total number of requests rejected by the rate limiter, partitioned by risk level.",
	},
	[]string{"risk_level"},
)

var RiskEvaluationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "risk",
		Name:      "evaluations_total",
		Help:      "Total number of continuous access evaluations, partitioned by resulting risk level.",
	},
	[]string{"level"},
)

var PipelineDeniesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentinel",
		Subsystem: "pipeline",
		Name:      "denies_total",
		Help:      "Total number of requests denied by the pipeline, partitioned by the step and reason that denied them.",
	},
	[]string{"reason"},
)

// All returns every collector this package defines, for registration
// against a prometheus.Registry at process start.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		AuditRecordsAppendedTotal,
		AuditRecordsDroppedTotal,
		PolicyDecisionCacheTotal,
		RateLimitRejectionsTotal,
		RiskEvaluationsTotal,
		PipelineDeniesTotal,
	}
}
