package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "j2k_parsing_seconds",
		Help:    "Time spent parsing a source file into an annotated tree.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "j2k_phase_seconds",
		Help:    "Time spent in one engine phase of a group run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	GroupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "j2k_groups_total",
		Help: "Total number of file groups converted, by outcome.",
	}, []string{"outcome"})

	FilesConvertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "j2k_files_converted_total",
		Help: "Total number of target files produced.",
	})

	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "j2k_decisions_total",
		Help: "Total number of sealed classification decisions, by shape.",
	}, []string{"shape"})

	ConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "j2k_conflicts_total",
		Help: "Total number of conflict records raised by the consistency checker.",
	})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "j2k_diagnostics_total",
		Help: "Total number of diagnostics reported, by severity.",
	}, []string{"severity"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "j2k_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	HistoryWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "j2k_history_write_errors_total",
		Help: "Total number of run summaries that could not be persisted.",
	})
)
