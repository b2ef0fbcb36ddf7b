package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/stefbowerman/undftd-cli/internal/db"
	"github.com/stefbowerman/undftd-cli/internal/models"
)

var (
	runsLimit   int
	runsCommand string
	runsStage   string
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List or inspect recorded runs",
	Long: `List recent runs from the run ledger, or show one run with its failed
records.

Requires UNDFTD_LEDGER_URL (or ledger.url in the config file).

Examples:
  undftd runs                        # List recent runs
  undftd runs --command sweep        # Only sweeps
  undftd runs 1a2b3c4d-...           # Show a run and its failures
  undftd runs 1a2b3c4d-... --stage order-creation`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", db.DefaultListLimit, "number of runs to list")
	runsCmd.Flags().StringVar(&runsCommand, "command", "", "only list runs of this command")
	runsCmd.Flags().StringVar(&runsStage, "stage", "", "only show failures of this stage")
}

// runLedger is the read side of the run ledger.
type runLedger interface {
	ListRuns(ctx context.Context, command string, limit int) ([]models.Run, error)
	GetRun(ctx context.Context, id string) (*models.Run, error)
	GetRunFailures(ctx context.Context, runID, stage string) ([]models.RunFailure, error)
}

func runRuns(cmd *cobra.Command, args []string) error {
	if !cfg.LedgerEnabled() {
		return errors.New("run ledger is not configured, set UNDFTD_LEDGER_URL")
	}
	ctx := cmd.Context()

	ledger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ledger.Close(ctx)

	// If run ID provided, show that specific run
	if len(args) == 1 {
		return showRun(ctx, cmd.OutOrStdout(), ledger, args[0], runsStage)
	}
	return listRuns(ctx, cmd.OutOrStdout(), ledger, runsCommand, runsLimit)
}

func listRuns(ctx context.Context, w io.Writer, ledger runLedger, command string, limit int) error {
	runs, err := ledger.ListRuns(ctx, command, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	fmt.Fprintf(w, "%-10s %-10s %-10s %-16s %-20s %s\n", "ID", "COMMAND", "STATUS", "OK/FAIL/LEFT", "STARTED", "TAG")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------")

	for _, run := range runs {
		id, err := models.RunID(run.ID)
		if err != nil {
			return err
		}
		counts := fmt.Sprintf("%d/%d/%d", run.Succeeded, run.Failed, run.Unprocessed)
		tag := ""
		if run.Tag != nil {
			tag = *run.Tag
		}
		started := run.StartedAt.Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(w, "%-10s %-10s %-10s %-16s %-20s %s\n", models.ShortRunID(id), run.Command, run.Status, counts, started, tag)
	}

	return nil
}

func showRun(ctx context.Context, w io.Writer, ledger runLedger, id, stage string) error {
	run, err := ledger.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("run not found: %s", id)
		}
		return fmt.Errorf("get run: %w", err)
	}

	fmt.Fprintf(w, "Run: %s\n", id)
	fmt.Fprintf(w, "  Command: %s\n", run.Command)
	if run.Tag != nil {
		fmt.Fprintf(w, "  Tag: %s\n", *run.Tag)
	}
	fmt.Fprintf(w, "  Source: %s\n", run.Source)
	fmt.Fprintf(w, "  Status: %s\n", run.Status)
	fmt.Fprintf(w, "  Records: %d total, %d succeeded, %d failed, %d unprocessed\n",
		run.Total, run.Succeeded, run.Failed, run.Unprocessed)
	fmt.Fprintf(w, "  Started: %s\n", run.StartedAt.Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed: %s\n", run.CompletedAt.Format(time.RFC3339))
		duration := run.CompletedAt.Sub(run.StartedAt)
		fmt.Fprintf(w, "  Duration: %s\n", duration.Round(time.Second))
	}
	if run.Error != nil && *run.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", *run.Error)
	}

	failures, err := ledger.GetRunFailures(ctx, id, stage)
	if err != nil {
		return fmt.Errorf("get run failures: %w", err)
	}
	if len(failures) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nFailures (%d):\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(w, "  - [%s] %s: %s\n", f.Stage, f.Identifier, f.Reason)
	}
	return nil
}
