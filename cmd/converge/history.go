package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/converge/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tSTARTED\tSOURCE\tTEST\tSUCCEEDED\tCHANGED\tPENDING\tFAILED")
		for _, run := range runs {
			succeeded, failed, pending, changed := run.Summary()
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%d\t%d\t%d\n",
				run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Source, run.Test,
				succeeded, changed, pending, failed)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show the results of one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		render, err := renderer(output)
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), run)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Number of runs to list, newest first (0 for all)")
	historyShowCmd.Flags().StringP("output", "o", "text", "Output format: text, json, yaml")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
