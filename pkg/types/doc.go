/*
Package types defines the data structures shared by the convergence engine,
the reconcilers and the command line.

# Result

Every reconciler entry point returns a Result:

	Result{
		Name:    "announce",
		Outcome: OutcomeUnknown,      // true | false | unknown
		Comment: "List announce is set to be updated",
		Diff: []Change{
			{Field: "Subscribed", Action: ActionAdd, Value: "y@example.org"},
		},
	}

Outcome is tri-state. OutcomeTrue covers both "nothing to do" and "changed";
the two are told apart by an empty or non-empty Diff. OutcomeUnknown means
that a change was detected under dry-run and not applied. OutcomeFalse means
the pass stopped at a failure; the Diff still lists the changes applied
before it.

Diff keeps detection order. Changes folds it into the field to value mapping
that is printed to users, joining repeated fields with newlines:

	r.Record("Unsubscribed", ActionRemove, "a@example.org")
	r.Record("Unsubscribed", ActionRemove, "b@example.org (explicit flag)")
	r.Changes()["Unsubscribed"] // "a@example.org\nb@example.org (explicit flag)"

JSON encodes the outcome as true, false or null.

# Errors

Primitives and reconcilers wrap one of ErrNotFound, ErrPrimitive,
ErrConflict or ErrValidation with fmt.Errorf and %w. The engine turns any of
them into OutcomeFalse; callers that need the category use errors.Is.

# Runs

Run and StateResult describe one invocation of a state file and are what the
run journal in pkg/storage persists.
*/
package types
