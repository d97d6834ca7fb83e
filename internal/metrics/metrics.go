// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes prometheus/client_golang instrumentation for
// every pipeline stage: capture, flow table, classifier, detector,
// attack handler, and blocklist. Grounded on the teacher's
// internal/metrics package (collector.go's per-subsystem counter/gauge
// set), reworked onto a real prometheus registry instead of the teacher's
// hand-rolled nftables counter scraper.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric this daemon exports, constructed once at
// startup and threaded through each component.
type Registry struct {
	PacketsProcessed    prometheus.Counter
	PacketsDropped      prometheus.Counter
	FlowsObserved       prometheus.Counter
	FlowsActive         prometheus.Gauge
	FlowsEvicted        prometheus.Counter
	FlowsExpired        prometheus.Counter
	ClassificationTime  prometheus.Histogram
	AttacksDetected     *prometheus.CounterVec
	FalsePositives      prometheus.Counter
	BlocksActive        prometheus.Gauge
	BlocksApplied       prometheus.Counter
	BlocksExpired       prometheus.Counter
	EffectorErrors      prometheus.Counter
	NotificationsSent   prometheus.Counter
}

// NewRegistry constructs and registers every metric against reg. Passing
// prometheus.NewRegistry() keeps tests isolated from the global default
// registry; cmd/ddosd also passes its own prometheus.NewRegistry().
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "capture", Name: "packets_processed_total",
			Help: "Total packets decoded from the capture source.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "capture", Name: "packets_dropped_total",
			Help: "Total packets dropped due to malformed input or backpressure.",
		}),
		FlowsObserved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "flowtable", Name: "flows_observed_total",
			Help: "Total distinct flows admitted to the flow table.",
		}),
		FlowsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ddosd", Subsystem: "flowtable", Name: "flows_active",
			Help: "Current number of live flows in the flow table.",
		}),
		FlowsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "flowtable", Name: "flows_evicted_total",
			Help: "Total flows dropped unanalyzed under buffer pressure.",
		}),
		FlowsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "flowtable", Name: "flows_expired_total",
			Help: "Total flows emitted for analysis by the idle-timeout sweeper.",
		}),
		ClassificationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ddosd", Subsystem: "detector", Name: "classification_seconds",
			Help:    "Per-flow ensemble scoring latency.",
			Buckets: prometheus.DefBuckets,
		}),
		AttacksDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "detector", Name: "attacks_detected_total",
			Help: "Total confirmed attacks, labeled by attack type.",
		}, []string{"attack_type"}),
		FalsePositives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "detector", Name: "false_positives_total",
			Help: "Total borderline verdicts suppressed by the legitimacy oracle.",
		}),
		BlocksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ddosd", Subsystem: "blocklist", Name: "blocks_active",
			Help: "Current number of blocked source addresses.",
		}),
		BlocksApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "blocklist", Name: "blocks_applied_total",
			Help: "Total firewall blocks applied.",
		}),
		BlocksExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "blocklist", Name: "blocks_expired_total",
			Help: "Total firewall blocks removed by TTL expiry.",
		}),
		EffectorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "blocklist", Name: "effector_errors_total",
			Help: "Total failed effector Block/Unblock calls, retried by the sweeper.",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddosd", Subsystem: "attack", Name: "notifications_sent_total",
			Help: "Total notifications dispatched for confirmed attacks.",
		}),
	}

	for _, c := range m.collectors() {
		reg.MustRegister(c)
	}
	return m
}

func (m *Registry) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PacketsProcessed, m.PacketsDropped,
		m.FlowsObserved, m.FlowsActive, m.FlowsEvicted, m.FlowsExpired,
		m.ClassificationTime, m.AttacksDetected, m.FalsePositives,
		m.BlocksActive, m.BlocksApplied, m.BlocksExpired, m.EffectorErrors,
		m.NotificationsSent,
	}
}
