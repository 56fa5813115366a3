package metrics

import (
	"github.com/cuemby/converge/pkg/types"
)

// ObserveResult counts a finished reconciliation and its applied changes.
// The diff of a pending result only predicts changes, so it is not counted.
func ObserveResult(kind string, r *types.Result) {
	ReconciliationsTotal.WithLabelValues(kind, r.Outcome.String()).Inc()
	if r.Outcome == types.OutcomeUnknown {
		return
	}
	for _, c := range r.Diff {
		ChangesTotal.WithLabelValues(kind, string(c.Action)).Inc()
	}
}
