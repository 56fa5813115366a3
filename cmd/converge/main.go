package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/converge/pkg/command"
	"github.com/cuemby/converge/pkg/config"
	"github.com/cuemby/converge/pkg/log"
	"github.com/cuemby/converge/pkg/lvm"
	"github.com/cuemby/converge/pkg/mailman"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is resolved once in the root command's PersistentPreRunE
var cfg *config.Config

// errStatesFailed makes the process exit non-zero after the run was printed
var errStatesFailed = errors.New("one or more states failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "converge",
	Short: "Converge - declarative mailing list and LVM reconciliation",
	Long: `Converge brings Mailman 2.x mailing lists and LVM volumes on this host
into the state declared in a YAML state file.

Every state is inspected first and only the missing changes are made.
Run with --test to see what would change without changing anything.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")

		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-json") {
			cfg.Log.JSON = logJSON
		}
		log.Init(log.Config{
			Level:      log.ParseLevel(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Converge version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default "+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log in JSON instead of console format")
}

// loadConfig reads path, or the default path when it exists, or falls back
// to built-in defaults
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.Load(config.DefaultPath)
	}
	return config.Default(), nil
}

func newMailmanCLI() *mailman.CLI {
	runner := command.NewExecRunner(nil, cfg.Exec.Timeout.Duration())
	return mailman.NewCLI(cfg.Mailman.BinDir, cfg.Mailman.ListsDir, runner)
}

func newLVMCLI() *lvm.CLI {
	runner := command.NewExecRunner(cfg.LVM.CommandPrefix, cfg.Exec.Timeout.Duration())
	return lvm.NewCLI(runner)
}
