package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stefbowerman/undftd-cli/internal/ingest"
	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/pipeline"
	"github.com/stefbowerman/undftd-cli/internal/sink"
)

var customersCmd = &cobra.Command{
	Use:   "customers <entries.csv>",
	Short: "Find or create a Shopify customer for every raffle entry",
	Long: `Find or create a Shopify customer for every entry of a raffle export.

Existing customers are matched on their email, case-insensitively. Missing
customers are created with their name and email only.

Examples:
  undftd customers entries.csv
  undftd customers entries.csv --tag DUNK-LOW-PANDA --output s3://raffles`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newSession(cmd, "customers", args[0]).runCustomers(cmd.Context(), args[0])
	},
}

func (s *session) runCustomers(ctx context.Context, path string) error {
	entrants, report, err := s.readEntrants(path)
	if err != nil {
		return err
	}
	if s.dryRun {
		s.printSizes(entrants, nil)
		return nil
	}
	if len(entrants) == 0 {
		fmt.Fprintln(s.out, "Nothing to process.")
		return nil
	}

	return s.execute(ctx, report, len(entrants), func(ctx context.Context, d *deps) error {
		rec := pipeline.NewReconciler(d.shop, d.limiter, pipeline.ReconcilerConfig{
			Tags:   s.cfg.CustomerTags,
			Logger: s.log(),
		})
		res, err := pipeline.NewRunner(rec.Stage(), d.opts...).Run(ctx, entrants)
		report.AddReconciliation(res, true)
		return err
	})
}

// readEntrants parses the export and starts the report with its rejected
// rows.
func (s *session) readEntrants(path string) ([]models.Entrant, *sink.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open entries: %w", err)
	}
	defer f.Close()

	entrants, rejected, err := ingest.ReadEntrants(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	report := s.newReport()
	report.AddRejected(rejected)
	s.printParsed("entries", len(entrants), rejected)
	return entrants, report, nil
}

func (s *session) printParsed(noun string, n int, rejected []ingest.RowError) {
	fmt.Fprintf(s.out, "Parsed %d %s from %s", n, noun, s.source)
	if len(rejected) > 0 {
		fmt.Fprintf(s.out, " (%d rows rejected)", len(rejected))
	}
	fmt.Fprintln(s.out)
	for _, re := range rejected {
		fmt.Fprintf(s.out, "  line %d: %s\n", re.Line, re.Reason)
	}
}

// printSizes lists the entry count per size. With variants set, sizes
// without a mapping are flagged.
func (s *session) printSizes(entrants []models.Entrant, variants pipeline.VariantMap) {
	counts := make(map[string]int)
	for _, e := range entrants {
		counts[e.VariantSelector()]++
	}
	sizes := make([]string, 0, len(counts))
	for size := range counts {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)

	fmt.Fprintf(s.out, "Dry run, nothing was sent to Shopify.\n")
	var unmapped []string
	for _, size := range sizes {
		label := size
		if label == "" {
			label = "(none)"
		}
		line := fmt.Sprintf("  size %-8s %d", label, counts[size])
		if variants != nil {
			if _, ok := variants.Resolve(size); !ok {
				line += "  no variant mapping"
				unmapped = append(unmapped, label)
			}
		}
		fmt.Fprintln(s.out, line)
	}
	if len(unmapped) > 0 {
		fmt.Fprintf(s.out, "%d sizes have no variant mapping: %s\n", len(unmapped), strings.Join(unmapped, ", "))
	}
}
