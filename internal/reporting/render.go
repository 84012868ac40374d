package reporting

import (
	"github.com/octostatus/estate-reporter/internal/models"
	"github.com/octostatus/estate-reporter/internal/sink"
)

func renderMarkdown(repo models.Repository, report models.Report, summary models.StatusSummary) string {
	return sink.RenderMarkdown(repo.Owner, repo.Name, report, summary)
}
