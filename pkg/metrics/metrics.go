package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds every converge metric. A dedicated registry keeps the
	// textfile export free of Go runtime collectors.
	Registry = prometheus.NewRegistry()

	// Reconciliation metrics
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "converge_reconciliations_total",
			Help: "Total number of reconciliations by resource kind and result",
		},
		[]string{"kind", "result"},
	)

	ReconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "converge_reconciliation_duration_seconds",
			Help:    "Duration of a single resource reconciliation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "converge_changes_total",
			Help: "Total number of recorded changes by resource kind and action",
		},
		[]string{"kind", "action"},
	)

	// Command metrics
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "converge_command_duration_seconds",
			Help:    "External command duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	CommandFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "converge_command_failures_total",
			Help: "Total number of external commands that exited non-zero",
		},
		[]string{"command"},
	)

	// Run metrics
	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "converge_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		},
	)

	LastRunFailed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "converge_last_run_failed_states",
			Help: "Number of states that returned false in the last run",
		},
	)
)

func init() {
	// Register all metrics
	Registry.MustRegister(ReconciliationsTotal)
	Registry.MustRegister(ReconciliationDuration)
	Registry.MustRegister(ChangesTotal)
	Registry.MustRegister(CommandDuration)
	Registry.MustRegister(CommandFailures)
	Registry.MustRegister(LastRunTimestamp)
	Registry.MustRegister(LastRunFailed)
}

// WriteTextfile writes Registry in the text exposition format to path, for
// the node_exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
