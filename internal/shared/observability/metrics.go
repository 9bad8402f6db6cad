package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weave_resolve_seconds",
		Help:    "Time spent discovering and ordering units from the entry files.",
		Buckets: prometheus.DefBuckets,
	})

	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weave_processor_phase_seconds",
		Help:    "Time spent in each processor phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	UnitsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "weave_units",
		Help: "Number of units per cache state after the last merge.",
	}, []string{"state"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weave_diagnostics_total",
		Help: "Total number of diagnostics attached to units.",
	}, []string{"category"})

	EmitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weave_emit_errors_total",
		Help: "Total number of engine emission failures that were logged and skipped.",
	})

	TopologyFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weave_topology_fallback_total",
		Help: "Total number of orderings that gave up and reversed the input.",
	})

	BuildCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weave_build_cycles_total",
		Help: "Total number of build cycles by result.",
	}, []string{"result"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weave_build_seconds",
		Help:    "Time spent on a whole build cycle.",
		Buckets: prometheus.DefBuckets,
	})

	RemoteReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weave_remote_reads_total",
		Help: "Total number of remote unit reads by result (fetched, cached, failed).",
	}, []string{"result"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weave_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
