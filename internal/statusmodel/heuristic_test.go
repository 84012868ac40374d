package statusmodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/models"
)

func bundleWith(counts map[evidence.WorkType]int) evidence.Bundle {
	groups := map[evidence.WorkType][]models.EventFact{}
	total := 0
	for wt, n := range counts {
		facts := make([]models.EventFact, n)
		groups[wt] = facts
		total += n
	}
	facts := make([]models.EventFact, total)
	return evidence.Bundle{
		WindowStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		Facts:       facts,
		Groups:      groups,
	}
}

func TestHeuristic_SummariseRepository_EmptyBundleIsUnknown(t *testing.T) {
	h := NewHeuristic()
	summary, err := h.SummariseRepository(context.Background(), evidence.Bundle{})
	require.NoError(t, err)
	require.Equal(t, models.StatusUnknown, summary.Status)
}

func TestHeuristic_SummariseRepository_ManyBugsAreAtRisk(t *testing.T) {
	h := NewHeuristic()
	bundle := bundleWith(map[evidence.WorkType]int{evidence.WorkBug: 3})
	summary, err := h.SummariseRepository(context.Background(), bundle)
	require.NoError(t, err)
	require.Equal(t, models.StatusAtRisk, summary.Status)
	require.NotEmpty(t, summary.Risks)
}

func TestHeuristic_SummariseRepository_HeavyBugLoadIsBlocked(t *testing.T) {
	h := NewHeuristic()
	bundle := bundleWith(map[evidence.WorkType]int{evidence.WorkBug: 5})
	summary, err := h.SummariseRepository(context.Background(), bundle)
	require.NoError(t, err)
	require.Equal(t, models.StatusBlocked, summary.Status)
}

func TestHeuristic_SummariseRepository_FeatureHeavyIsOnTrack(t *testing.T) {
	h := NewHeuristic()
	bundle := bundleWith(map[evidence.WorkType]int{evidence.WorkFeature: 4})
	summary, err := h.SummariseRepository(context.Background(), bundle)
	require.NoError(t, err)
	require.Equal(t, models.StatusOnTrack, summary.Status)
	require.NotEmpty(t, summary.Highlights)
}

func TestHeuristic_SummariseEstate_TakesWorstStatusAcrossBundles(t *testing.T) {
	h := NewHeuristic()
	onTrack := bundleWith(map[evidence.WorkType]int{evidence.WorkFeature: 2})
	blocked := bundleWith(map[evidence.WorkType]int{evidence.WorkBug: 6})

	summary, err := h.SummariseEstate(context.Background(), []evidence.Bundle{onTrack, blocked})
	require.NoError(t, err)
	require.Equal(t, models.StatusBlocked, summary.Status)
}

func TestHeuristic_Name_IdentifiesBackend(t *testing.T) {
	require.Equal(t, "heuristic/v1", NewHeuristic().Name())
}
