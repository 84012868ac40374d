// Package sink implements the Report Renderer / Sink (spec component H):
// Markdown rendering plus pluggable atomic storage.
package sink

import (
	"fmt"
	"strings"

	"github.com/octostatus/estate-reporter/internal/models"
)

// RenderMarkdown formats a Report into the layout from spec §4.H. Empty
// optional sections are omitted entirely.
func RenderMarkdown(owner, name string, report models.Report, summary models.StatusSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s/%s — Status report (%s to %s)\n\n", owner, name,
		report.WindowStart.Format("2006-01-02"), report.WindowEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "**Status:** %s\n\n", report.Status)
	fmt.Fprintf(&b, "## Summary\n\n%s\n", report.HumanText)

	writeListSection(&b, "Highlights", summary.Highlights)
	writeListSection(&b, "Risks", summary.Risks)
	writeListSection(&b, "Next steps", summary.NextSteps)

	fmt.Fprintf(&b, "\n*Generated %s by %s for window %s–%s (report %s)*\n",
		report.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"), report.Model,
		report.WindowStart.Format("2006-01-02"), report.WindowEnd.Format("2006-01-02"), report.ID)

	return b.String()
}

func writeListSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
