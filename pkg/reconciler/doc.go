/*
Package reconciler provides the convergence engine shared by the mailing-list
and LVM reconcilers.

The engine knows nothing about Mailman or LVM. A reconciler describes a
resource by its existence query and its create/remove mutators, plus an
ordered list of attribute steps, and the engine applies one uniform control
flow to them:

	                 Present(res, steps...)
	                          │
	                  res.Exists(ctx)
	          ┌───────────────┴───────────────┐
	       absent                          present
	          │                               │
	   DryRun? ── yes ─► Unknown              │
	          │ no      "set to be created"   │
	   res.Create(ctx)                        │
	   res.Exists(ctx) ── still absent ─► False, stop
	          │                               │
	          └───────────────┬───────────────┘
	                          ▼
	               for each step, in order:
	                 plan := step.Plan(ctx)
	                 in sync?        ─► next step
	                 DryRun?         ─► record plan.Changes, Unknown
	                 plan.Apply(ctx) ─► error: False, stop
	                 plan.Verify(ctx)─► error: False, stop
	                 record plan.Changes

# Outcomes

The result is OutcomeFalse as soon as anything fails and the pass stops
there: no rollback, and changes applied before the failure remain in the
diff. Otherwise it is OutcomeUnknown when at least one change was only
predicted (dry-run), and OutcomeTrue when everything is in sync or was
changed. Comment always reflects the latest state-changing step.

Existence is always re-queried after Create and Remove. Attribute steps
decide for themselves whether to re-verify by setting Plan.Verify; the LVM
reconciler does for resize and extend, the mailing-list reconciler does not.

# Errors

Errors returned by Exists, Create, Remove, Plan, Apply or Verify never leave
the engine. They become a failed result whose comment contains the error
text. Desired state that is invalid before any primitive runs is reported
with Invalid.

# Metrics

Every Present and Absent call is timed on
converge_reconciliation_duration_seconds and counted on
converge_reconciliations_total and converge_changes_total.
*/
package reconciler
