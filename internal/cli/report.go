package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/modelseed-go/internal/models"
)

// renderReport formats a run report for the terminal.
func renderReport(r *models.RunReport) string {
	t := defaultTheme
	var b strings.Builder

	mode := ""
	if r.DryRun {
		mode = t.hintStyle().Render(" (dry run)")
	}
	b.WriteString(fmt.Sprintf("\nRun %s%s\n", t.statusStyle().Render(r.RunID), mode))

	for _, s := range r.Stages {
		line := fmt.Sprintf("  %-11s %3d attempted  %3d ok  %3d failed  %3d skipped",
			s.Stage, s.Attempted, s.Succeeded, s.Failed, s.Skipped)
		if s.Failed > 0 {
			line = t.errorStyle().Render(line)
		}
		b.WriteString(line + "\n")
	}

	if len(r.Failures) > 0 {
		b.WriteString(t.errorStyle().Render(fmt.Sprintf("\nFailures (%d):\n", len(r.Failures))))
		for _, f := range r.Failures {
			b.WriteString(fmt.Sprintf("  • %s [%s]: %s\n", f.ID, f.Stage, f.Detail))
		}
	}

	if r.Success {
		b.WriteString(t.completedStyle().Render("\n✓ Completed") + "\n")
	} else {
		b.WriteString(t.errorStyle().Render("\n✗ Completed with failures") + "\n")
	}
	if !r.CompletedAt.IsZero() {
		b.WriteString(t.hintStyle().Render(fmt.Sprintf("  %s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))))
	}
	return b.String()
}
