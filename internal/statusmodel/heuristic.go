package statusmodel

import (
	"context"
	"fmt"

	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/models"
)

// Heuristic is a deterministic, non-LLM backend: status and narrative are
// derived purely from bundle shape, so the same bundle always produces the
// same summary. Used in tests and as the default local backend (spec §4.F,
// §6 backend=mock).
type Heuristic struct{}

func NewHeuristic() Heuristic { return Heuristic{} }

// Name identifies this backend in persisted reports (spec §6 backend=mock).
func (Heuristic) Name() string { return "heuristic/v1" }

func (Heuristic) SummariseRepository(ctx context.Context, bundle evidence.Bundle) (models.StatusSummary, error) {
	bugs := len(bundle.Groups[evidence.WorkBug])
	features := len(bundle.Groups[evidence.WorkFeature])
	total := len(bundle.Facts)

	status := models.StatusOnTrack
	switch {
	case total == 0:
		status = models.StatusUnknown
	case bugs >= 5:
		status = models.StatusBlocked
	case bugs > features && bugs >= 3:
		status = models.StatusAtRisk
	}

	highlights := make([]string, 0, 2)
	if features > 0 {
		highlights = append(highlights, fmt.Sprintf("%d feature-tagged change(s) landed", features))
	}
	if refactors := len(bundle.Groups[evidence.WorkRefactor]); refactors > 0 {
		highlights = append(highlights, fmt.Sprintf("%d refactor(s) landed", refactors))
	}

	var risks []string
	if bugs > 0 {
		risks = append(risks, fmt.Sprintf("%d bug-tagged change(s) in this window", bugs))
	}

	return models.StatusSummary{
		Status:      status,
		SummaryText: fmt.Sprintf("%d tracked change(s) between %s and %s.", total, bundle.WindowStart.Format("2006-01-02"), bundle.WindowEnd.Format("2006-01-02")),
		Highlights:  highlights,
		Risks:       risks,
	}, nil
}

func (h Heuristic) SummariseProject(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return h.aggregate(ctx, bundles)
}

func (h Heuristic) SummariseEstate(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return h.aggregate(ctx, bundles)
}

func (h Heuristic) aggregate(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	total := 0
	worst := models.StatusOnTrack
	for _, b := range bundles {
		s, err := h.SummariseRepository(ctx, b)
		if err != nil {
			return models.StatusSummary{}, err
		}
		total += len(b.Facts)
		worst = worseOf(worst, s.Status)
	}
	return models.StatusSummary{
		Status:      worst,
		SummaryText: fmt.Sprintf("%d repositories, %d tracked change(s) total.", len(bundles), total),
	}, nil
}

var statusSeverity = map[models.ReportStatus]int{
	models.StatusOnTrack: 0, models.StatusUnknown: 1, models.StatusAtRisk: 2, models.StatusBlocked: 3,
}

func worseOf(a, b models.ReportStatus) models.ReportStatus {
	if statusSeverity[b] > statusSeverity[a] {
		return b
	}
	return a
}
