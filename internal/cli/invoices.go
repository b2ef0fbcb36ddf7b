package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stefbowerman/undftd-cli/internal/ingest"
	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices <draft-orders.csv>",
	Short: "Send the invoice of every draft order listed in a CSV",
	Long: `Send the invoice of every draft order listed in a CSV, usually the
draft-orders table written by a previous sweep.

The email carries the "invoice_message" from the config file.

Examples:
  undftd invoices output/sweep-draft-orders-DUNK-LOW-1234.csv --config raffle.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newSession(cmd, "invoices", args[0]).runInvoices(cmd.Context(), args[0])
	},
}

func (s *session) runInvoices(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open draft orders: %w", err)
	}
	refs, rejected, err := ingest.ReadDraftOrders(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	report := s.newReport()
	report.AddRejected(rejected)
	s.printParsed("draft orders", len(refs), rejected)

	if s.dryRun {
		fmt.Fprintf(s.out, "Dry run, nothing was sent to Shopify. %d invoices would be sent.\n", len(refs))
		return nil
	}
	if len(refs) == 0 {
		fmt.Fprintln(s.out, "Nothing to process.")
		return nil
	}

	return s.execute(ctx, report, len(refs), func(ctx context.Context, d *deps) error {
		sender := pipeline.NewInvoiceSender(d.shop, d.limiter, s.cfg.InvoiceMessage, s.log())
		res, err := pipeline.NewRunner(sender.Stage(), d.opts...).Run(ctx, refs)
		report.AddInvoices(res)
		return err
	})
}
