package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/converge/pkg/types"
)

type renderFunc func(w io.Writer, run *types.Run) error

func renderer(format string) (renderFunc, error) {
	switch format {
	case "text", "":
		return renderText, nil
	case "json":
		return renderJSON, nil
	case "yaml":
		return renderYAML, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func renderJSON(w io.Writer, run *types.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func renderYAML(w io.Writer, run *types.Run) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(run); err != nil {
		return err
	}
	return enc.Close()
}

// renderText prints one block per state followed by a summary
func renderText(w io.Writer, run *types.Run) error {
	for _, sr := range run.Results {
		r := sr.Result
		fmt.Fprintln(w, "----------")
		fmt.Fprintf(w, "%12s: %s\n", "ID", sr.ID)
		fmt.Fprintf(w, "%12s: %s\n", "Function", sr.State)
		fmt.Fprintf(w, "%12s: %s\n", "Name", r.Name)
		fmt.Fprintf(w, "%12s: %s\n", "Result", outcomeLabel(r.Outcome))
		fmt.Fprintf(w, "%12s: %s\n", "Comment", indent(r.Comment, 14))
		fmt.Fprintf(w, "%12s: %s\n", "Duration", sr.Duration)

		changes := r.Changes()
		fmt.Fprintf(w, "%12s:\n", "Changes")
		for _, field := range r.ChangedFields() {
			fmt.Fprintf(w, "%14s%s: %s\n", "", field, indent(changes[field], 16+len(field)))
		}
	}

	succeeded, failed, pending, changed := run.Summary()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary for %s (run %s)\n", run.Source, run.ID)
	fmt.Fprintln(w, "------------")
	fmt.Fprintf(w, "Succeeded: %d (changed=%d)\n", succeeded, changed)
	if pending > 0 {
		fmt.Fprintf(w, "Pending:   %d\n", pending)
	}
	fmt.Fprintf(w, "Failed:    %d\n", failed)
	fmt.Fprintln(w, "------------")
	fmt.Fprintf(w, "Total states run: %d\n", len(run.Results))
	fmt.Fprintf(w, "Total run time:   %s\n", run.FinishedAt.Sub(run.StartedAt))
	return nil
}

func outcomeLabel(o types.Outcome) string {
	switch o {
	case types.OutcomeTrue:
		return "True"
	case types.OutcomeFalse:
		return "False"
	default:
		return "None"
	}
}

// indent aligns continuation lines of a multi-line value
func indent(s string, n int) string {
	return strings.ReplaceAll(s, "\n", "\n"+strings.Repeat(" ", n))
}
