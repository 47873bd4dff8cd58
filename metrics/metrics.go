// Package metrics holds the process-wide instrumentation surface (spec
// §4.8 domain-stack wiring): a Handle wrapping an injected
// *prometheus.Registry, following this codebase's "inject a handle, not a
// global" convention for every other shared resource (the logger, the
// clock, the stats registry).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Handle bundles every metric this node exports. It is built once at
// startup and passed to the code that updates it (ProcessObserver and the
// daemon's processor loop) instead of any package reaching for promauto's
// global registry.
type Handle struct {
	Registry *prometheus.Registry

	AdmitQueueDepth   prometheus.Gauge
	AdmitQueueDrops   prometheus.Counter
	ForkQueueDepth    prometheus.Gauge
	ProcessorOpLatency *prometheus.HistogramVec
	ProcessorOpsTotal  *prometheus.CounterVec

	ElectionsStarted  prometheus.Counter
	ElectionsResolved *prometheus.CounterVec

	BootstrapBytesTotal *prometheus.CounterVec
	BootstrapPeerAborts *prometheus.CounterVec
}

// New builds a Handle and registers every metric on a fresh registry.
func New() *Handle {
	reg := prometheus.NewRegistry()
	h := &Handle{
		Registry: reg,
		AdmitQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raichain",
			Subsystem: "processor",
			Name:      "admit_queue_depth",
			Help:      "Blocks currently waiting in the admit queue.",
		}),
		AdmitQueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raichain",
			Subsystem: "processor",
			Name:      "admit_queue_drops_total",
			Help:      "Blocks evicted from the admit queue under backpressure.",
		}),
		ForkQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raichain",
			Subsystem: "processor",
			Name:      "fork_queue_depth",
			Help:      "Fork pairs currently waiting in the fork queue.",
		}),
		ProcessorOpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "raichain",
			Subsystem: "processor",
			Name:      "operation_seconds",
			Help:      "Wall-clock latency of a single processor operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ProcessorOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raichain",
			Subsystem: "processor",
			Name:      "operations_total",
			Help:      "Processor operations by operation and result code.",
		}, []string{"operation", "code"}),
		ElectionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raichain",
			Subsystem: "election",
			Name:      "started_total",
			Help:      "Elections started from a fork record.",
		}),
		ElectionsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raichain",
			Subsystem: "election",
			Name:      "resolved_total",
			Help:      "Elections resolved, labeled by outcome.",
		}, []string{"outcome"}),
		BootstrapBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raichain",
			Subsystem: "bootstrap",
			Name:      "bytes_total",
			Help:      "Bytes transferred by bootstrap mode.",
		}, []string{"mode", "direction"}),
		BootstrapPeerAborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raichain",
			Subsystem: "bootstrap",
			Name:      "peer_aborts_total",
			Help:      "Bootstrap sessions aborted, labeled by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		h.AdmitQueueDepth, h.AdmitQueueDrops, h.ForkQueueDepth,
		h.ProcessorOpLatency, h.ProcessorOpsTotal,
		h.ElectionsStarted, h.ElectionsResolved,
		h.BootstrapBytesTotal, h.BootstrapPeerAborts,
	)
	return h
}
