package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <entries.csv>",
	Short: "Reconcile every winner, then create their draft orders",
	Long: `Reconcile every entry of a winners export against Shopify, then create one
draft order per reconciled customer for the variant of their size.

No draft order is created before every entry has been reconciled. Between
the two phases you are asked to confirm, unless --yes is given.

Sizes are mapped to product variant ids in the "variants" section of the
config file.

Examples:
  undftd sweep winners.csv --config raffle.yaml
  undftd sweep winners.csv --config raffle.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newSession(cmd, "sweep", args[0]).runSweep(cmd.Context(), args[0])
	},
}

func (s *session) runSweep(ctx context.Context, path string) error {
	entrants, report, err := s.readEntrants(path)
	if err != nil {
		return err
	}
	variants := pipeline.VariantMap(s.cfg.Variants)
	if s.dryRun {
		s.printSizes(entrants, variants)
		return nil
	}
	if len(entrants) == 0 {
		fmt.Fprintln(s.out, "Nothing to process.")
		return nil
	}
	if len(variants) == 0 {
		s.log().Warn("no variant mapping configured, every draft order will fail")
	}

	return s.execute(ctx, report, len(entrants), func(ctx context.Context, d *deps) error {
		rec := pipeline.NewReconciler(d.shop, d.limiter, pipeline.ReconcilerConfig{
			Tags:   s.cfg.CustomerTags,
			Logger: s.log(),
		})
		orders := pipeline.NewOrderCreator(d.shop, d.limiter, variants, s.log())

		res, err := pipeline.NewSweep(rec, orders, d.gate, d.opts...).Run(ctx, entrants)
		report.AddSweep(res)
		return err
	})
}
