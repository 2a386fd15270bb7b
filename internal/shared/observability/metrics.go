package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "csguard_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "csguard_analysis_seconds",
		Help:    "Time spent on analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	FilesAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csguard_files_analyzed_total",
		Help: "Total number of source files analyzed.",
	})

	FileFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csguard_file_failures_total",
		Help: "Total number of source files that could not be read or parsed.",
	})

	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csguard_violations_total",
		Help: "Total number of violations reported, by rule.",
	}, []string{"rule"})

	CurrentViolations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "csguard_current_violations",
		Help: "Violations in the latest run, by rule.",
	}, []string{"rule"})

	ParserLeasesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csguard_parser_leases_active",
		Help: "Parsers currently leased from the pool.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csguard_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WriteQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csguard_write_queue_depth",
		Help: "Current number of runs waiting to be written to history.",
	})

	WriteSpoolDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csguard_write_spool_depth",
		Help: "Current number of spooled history writes waiting for a retry.",
	})

	WriteQueueDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csguard_write_queue_dropped_total",
		Help: "Total number of history writes dropped from the in-memory queue due to backpressure.",
	})

	WriteQueueSpilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csguard_write_queue_spilled_total",
		Help: "Total number of history writes spooled after a failed apply.",
	})

	WriteQueueProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csguard_write_queue_processed_total",
		Help: "Total number of history writes applied.",
	})

	WriteQueueFlushLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "csguard_write_queue_flush_seconds",
		Help:    "Latency for applying a history write batch.",
		Buckets: prometheus.DefBuckets,
	})
)
