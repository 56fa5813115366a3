package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Outcome is the tri-state result of a reconciliation
type Outcome int

const (
	// OutcomeTrue means the resource is in the desired state (changed or not)
	OutcomeTrue Outcome = iota
	// OutcomeFalse means reconciliation failed
	OutcomeFalse
	// OutcomeUnknown means a change would be made but dry-run prevented it
	OutcomeUnknown
)

// String returns the salt-style spelling of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeTrue:
		return "true"
	case OutcomeFalse:
		return "false"
	case OutcomeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalJSON encodes Unknown as null so that callers can tell the three
// states apart without a string compare.
func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o {
	case OutcomeTrue:
		return []byte("true"), nil
	case OutcomeFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON
func (o *Outcome) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*o = OutcomeTrue
	case "false":
		*o = OutcomeFalse
	case "null":
		*o = OutcomeUnknown
	default:
		return fmt.Errorf("invalid outcome: %s", data)
	}
	return nil
}

// MarshalYAML renders the outcome like MarshalJSON does
func (o Outcome) MarshalYAML() (interface{}, error) {
	switch o {
	case OutcomeTrue:
		return true, nil
	case OutcomeFalse:
		return false, nil
	default:
		return nil, nil
	}
}

// Action classifies a single recorded change
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionChange Action = "change"
)

// Change is one entry of a reconciliation diff
type Change struct {
	Field  string `json:"field" yaml:"field"`
	Action Action `json:"action" yaml:"action"`
	Value  string `json:"value" yaml:"value"`
}

// Result is what every reconciler operation returns
type Result struct {
	Name    string   `json:"name" yaml:"name"`
	Outcome Outcome  `json:"result" yaml:"result"`
	Comment string   `json:"comment" yaml:"comment"`
	Diff    []Change `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// NewResult creates a successful, unchanged result for name
func NewResult(name string) *Result {
	return &Result{
		Name:    name,
		Outcome: OutcomeTrue,
	}
}

// Record appends a change to the diff, keeping detection order
func (r *Result) Record(field string, action Action, value string) {
	r.Diff = append(r.Diff, Change{Field: field, Action: action, Value: value})
}

// Fail marks the result as failed with the given comment
func (r *Result) Fail(comment string) *Result {
	r.Outcome = OutcomeFalse
	r.Comment = comment
	return r
}

// Pending marks the result as a predicted change. A failure is never
// downgraded to pending.
func (r *Result) Pending(comment string) *Result {
	if r.Outcome != OutcomeFalse {
		r.Outcome = OutcomeUnknown
	}
	r.Comment = comment
	return r
}

// Failed reports whether the result carries OutcomeFalse
func (r *Result) Failed() bool {
	return r.Outcome == OutcomeFalse
}

// Changes folds the diff into a field -> value mapping. Values recorded for
// the same field are joined with newlines in detection order.
func (r *Result) Changes() map[string]string {
	changes := make(map[string]string)
	for _, c := range r.Diff {
		if prev, ok := changes[c.Field]; ok {
			changes[c.Field] = prev + "\n" + c.Value
		} else {
			changes[c.Field] = c.Value
		}
	}
	return changes
}

// ChangedFields returns the sorted keys of Changes
func (r *Result) ChangedFields() []string {
	changes := r.Changes()
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// MarshalJSON adds the folded changes map next to the ordered diff
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Changes map[string]string `json:"changes"`
	}{plain(r), r.Changes()})
}

// String renders a one-line summary
func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: result=%s comment=%q", r.Name, r.Outcome, r.Comment)
	for _, f := range r.ChangedFields() {
		fmt.Fprintf(&b, " %s=%q", f, r.Changes()[f])
	}
	return b.String()
}

// StateResult ties a Result to the state entry that produced it
type StateResult struct {
	ID       string        `json:"id" yaml:"id"`
	State    string        `json:"state" yaml:"state"`
	Result   Result        `json:"result" yaml:"result"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Run is one invocation of a set of states
type Run struct {
	ID         string        `json:"id" yaml:"id"`
	Source     string        `json:"source" yaml:"source"`
	Test       bool          `json:"test" yaml:"test"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Results    []StateResult `json:"results" yaml:"results"`
}

// Summary counts results per outcome
func (r *Run) Summary() (succeeded, failed, pending, changed int) {
	for _, sr := range r.Results {
		switch sr.Result.Outcome {
		case OutcomeTrue:
			succeeded++
		case OutcomeFalse:
			failed++
		case OutcomeUnknown:
			pending++
		}
		if len(sr.Result.Diff) > 0 && sr.Result.Outcome == OutcomeTrue {
			changed++
		}
	}
	return succeeded, failed, pending, changed
}
