// Package cli provides the command-line interface for undftd.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stefbowerman/undftd-cli/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	assumeYes  bool
	configPath string
	dryRun     bool
	outputURL  string
	runTag     string

	// Global config and logger
	cfg           config.Config
	logger        *slog.Logger
	loggerCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "undftd",
	Short: "Raffle fulfilment for the Undefeated Shopify store",
	Long: `undftd turns a raffle entry export into Shopify customers, draft orders
and invoices.

Every remote call is paced by a shared rate limit. Each run writes CSV
tables of what was created, what failed and what was left unprocessed.

Credentials come from SHOPIFY_SHOP and SHOPIFY_ACCESS_TOKEN or from the
file given with --config.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if outputURL != "" {
			cfg.Output = outputURL
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		} else if stdoutIsTerminal() && level < slog.LevelWarn {
			// Keep stderr quiet under the progress UI, the file still gets everything.
			level = slog.LevelWarn
		}
		logger, loggerCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if loggerCleanup != nil {
			if err := loggerCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Cancelling ctx aborts a running batch.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every confirmation")
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.BoolVar(&dryRun, "dry-run", false, "parse and count the input without calling Shopify")
	flags.StringVarP(&outputURL, "output", "o", "", "output bucket URL or directory (default $UNDFTD_OUTPUT)")
	flags.StringVarP(&runTag, "tag", "t", "", "label added to output file names, e.g. the product SKU")

	rootCmd.AddCommand(customersCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(invoicesCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "undftd %s\n", Version)
	},
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
