package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/stefbowerman/undftd-cli/internal/metrics"
	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/sink"
)

// renderSummary prints the outcome of a run, the remote call stats and the
// files it wrote.
func renderSummary(w io.Writer, r *sink.Report, written []string, snap metrics.Snapshot, theme Theme) {
	var b strings.Builder

	heading := fmt.Sprintf("%s %s (run %s)", r.Command, r.Status, models.ShortRunID(r.RunID))
	switch r.Status {
	case models.RunStatusCompleted:
		b.WriteString(theme.completedStyle().Render("✓ " + heading))
	case models.RunStatusAborted:
		b.WriteString(theme.warningStyle().Bold(true).Render("! " + heading))
	default:
		b.WriteString(theme.errorStyle().Render("✗ " + heading))
	}
	b.WriteString("\n\n")

	label := lipgloss.NewStyle().Width(14)
	row := func(name string, value int, style lipgloss.Style) {
		b.WriteString("  " + label.Render(name+":") + style.Render(fmt.Sprint(value)) + "\n")
	}
	plain := lipgloss.NewStyle()
	row("Total", r.Total, plain)
	row("Succeeded", r.Succeeded, theme.completedStyle())
	failedStyle := plain
	if r.Failed > 0 {
		failedStyle = theme.errorStyle()
	}
	row("Failed", r.Failed, failedStyle)
	unprocessedStyle := plain
	if r.Unprocessed > 0 {
		unprocessedStyle = theme.warningStyle()
	}
	row("Unprocessed", r.Unprocessed, unprocessedStyle)

	if r.Err != nil {
		b.WriteString("\n  " + theme.errorStyle().Render("Error: ") + r.Err.Error() + "\n")
	}

	if len(snap.Operations) > 0 {
		b.WriteString("\n" + theme.statusStyle().Render("Shopify calls") + "\n")
		for _, op := range snap.Operations {
			fmt.Fprintf(&b, "  %-22s %4d  avg %s", op.Operation, op.Count, formatMs(op.AvgTimeMs))
			if op.Errors > 0 {
				b.WriteString("  " + theme.errorStyle().Render(fmt.Sprintf("%d errors", op.Errors)))
			}
			b.WriteString("\n")
		}
		if snap.LimiterWaits > 0 {
			b.WriteString(theme.hintStyle().Render(fmt.Sprintf("  paced %d times, %s waiting",
				snap.LimiterWaits, (time.Duration(snap.LimiterWaitMs) * time.Millisecond).Round(time.Millisecond))) + "\n")
		}
	}

	if len(written) > 0 {
		b.WriteString("\n" + theme.statusStyle().Render("Written") + "\n")
		for _, loc := range written {
			b.WriteString("  " + loc + "\n")
		}
	}

	fmt.Fprint(w, b.String())
}

func formatMs(ms float64) string {
	return (time.Duration(ms * float64(time.Millisecond))).Round(time.Millisecond).String()
}
