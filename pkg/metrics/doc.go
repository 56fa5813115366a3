/*
Package metrics exposes Prometheus metrics for converge.

converge runs as a one-shot command, so metrics are usually exported through
the node_exporter textfile collector rather than scraped over HTTP:

	converge apply -f states.yaml --metrics-textfile /var/lib/node_exporter/converge.prom

All metrics live on the package Registry:

	converge_reconciliations_total{kind, result}
	converge_reconciliation_duration_seconds{kind}
	converge_changes_total{kind, action}
	converge_command_duration_seconds{command}
	converge_command_failures_total{command}
	converge_last_run_timestamp_seconds
	converge_last_run_failed_states

Timer wraps the usual start/observe pattern:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CommandDuration, "lvcreate")
*/
package metrics
