package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/converge/pkg/log"
	"github.com/cuemby/converge/pkg/mailman"
	"github.com/cuemby/converge/pkg/metrics"
	"github.com/cuemby/converge/pkg/state"
	"github.com/cuemby/converge/pkg/storage"
	"github.com/cuemby/converge/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a state file",
	Long: `Apply the states declared in a YAML state file, in order.

Examples:
  # Show what would change
  converge apply -f site.yaml --test

  # Converge and print the results as JSON
  converge apply -f site.yaml -o json`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "State file to apply (required)")
	applyCmd.Flags().Bool("test", false, "Report what would change without changing anything")
	applyCmd.Flags().StringP("output", "o", "text", "Output format: text, json, yaml")
	applyCmd.Flags().String("metrics-textfile", "", "Write metrics for the node_exporter textfile collector to this path")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	test, _ := cmd.Flags().GetBool("test")
	output, _ := cmd.Flags().GetString("output")
	textfile, _ := cmd.Flags().GetString("metrics-textfile")
	if textfile == "" {
		textfile = cfg.Metrics.Textfile
	}

	render, err := renderer(output)
	if err != nil {
		return err
	}

	file, err := state.Load(filename)
	if err != nil {
		return err
	}

	applier := state.NewApplier(state.Modules{
		Mailman: newMailmanCLI(),
		MailmanOptions: mailman.Options{
			DefaultOwner:   cfg.Mailman.DefaultOwner,
			PasswordLength: cfg.Mailman.PasswordLength,
		},
		LVM: newLVMCLI(),
	}, test)

	run, err := applier.Apply(cmd.Context(), file, filename)
	if err != nil {
		if run != nil {
			journal(run)
		}
		return fmt.Errorf("run interrupted: %w", err)
	}

	journal(run)

	if textfile != "" {
		if err := metrics.WriteTextfile(textfile); err != nil {
			log.Logger.Warn().Err(err).Str("path", textfile).Msg("failed to write metrics textfile")
		}
	}

	if err := render(cmd.OutOrStdout(), run); err != nil {
		return err
	}

	if _, failed, _, _ := run.Summary(); failed > 0 {
		return errStatesFailed
	}
	return nil
}

// journal records the run. A journal that cannot be written never fails
// the run whose changes are already made.
func journal(run *types.Run) {
	logger := log.WithRunID(run.ID)

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		logger.Warn().Err(err).Msg("run journal unavailable")
		return
	}
	defer store.Close()

	if err := store.SaveRun(run); err != nil {
		logger.Warn().Err(err).Msg("failed to record run")
		return
	}
	if pruned, err := store.PruneRuns(cfg.History.Keep); err != nil {
		logger.Warn().Err(err).Msg("failed to prune run journal")
	} else if pruned > 0 {
		logger.Debug().Int("pruned", pruned).Msg("pruned run journal")
	}
}
