// Package metrics exposes Prometheus counters for the sealed core's
// caller-visible outcomes. Nothing in here ever records phone numbers,
// UUIDs, or key material -- only counts and sizes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CallsHandled counts handle_call invocations by outcome and whether
	// the call used the ratelimit path.
	CallsHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cds",
		Name:      "calls_handled_total",
		Help:      "Number of handle_call invocations by path and outcome.",
	}, []string{"path", "outcome"})

	// RatelimitOutcomes counts ratelimit-path results specifically
	// (exceeded vs accepted), the caller-visible distinction that matters
	// most for alerting.
	RatelimitOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cds",
		Name:      "ratelimit_outcomes_total",
		Help:      "Ratelimit update outcomes.",
	}, []string{"outcome"})

	// BatchSize observes the query-phone count accumulated per terminate
	// call, i.e. the accumulator's length at termination.
	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cds",
		Name:      "terminate_batch_size",
		Help:      "Number of accumulated query phones at terminate time.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	})

	// TerminateDuration observes terminate's wall-clock latency.
	TerminateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cds",
		Name:      "terminate_duration_seconds",
		Help:      "terminate() latency, including bulk lookup and reply dispatch.",
		Buckets:   prometheus.DefBuckets,
	})

	// ActiveInstances tracks concurrently live server instances (between
	// init and terminate).
	ActiveInstances = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cds",
		Name:      "active_server_instances",
		Help:      "Server instances that have been initialised but not yet terminated.",
	})
)

// Collectors bundles the collectors above for a caller (typically cmd/cdsd)
// to register with a prometheus.Registerer.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		CallsHandled,
		RatelimitOutcomes,
		BatchSize,
		TerminateDuration,
		ActiveInstances,
	}
}
