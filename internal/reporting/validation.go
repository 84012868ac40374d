package reporting

import (
	"strings"

	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/models"
)

// validate runs the three validation rules from spec §7 and collects every
// violation rather than failing fast on the first.
func validate(summary models.StatusSummary, bundle evidence.Bundle) []models.ReviewIssue {
	var issues []models.ReviewIssue

	if strings.TrimSpace(summary.SummaryText) == "" {
		issues = append(issues, models.ReviewIssue{Code: "empty_summary", Message: "summary text is empty or whitespace-only"})
	}

	trimmed := strings.TrimRight(summary.SummaryText, " \t\n")
	if strings.HasSuffix(trimmed, "...") || strings.HasSuffix(trimmed, "…") {
		issues = append(issues, models.ReviewIssue{Code: "truncated_summary", Message: "summary text ends with an ellipsis"})
	}

	if len(summary.Highlights) > 5*len(bundle.Facts) {
		issues = append(issues, models.ReviewIssue{Code: "implausible_highlights", Message: "highlight count is implausible relative to evidence volume"})
	}

	return issues
}
