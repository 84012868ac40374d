package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/bronzestore"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/eventbus"
	"github.com/octostatus/estate-reporter/internal/goldstore"
	"github.com/octostatus/estate-reporter/internal/lock"
	"github.com/octostatus/estate-reporter/internal/models"
	"github.com/octostatus/estate-reporter/internal/projector"
)

// alwaysImplausible returns 30 highlights no matter the bundle size, used
// to exercise the V3 implausible_highlights validation failure (spec §8
// scenario 5).
type alwaysImplausible struct{}

func (alwaysImplausible) SummariseRepository(ctx context.Context, bundle evidence.Bundle) (models.StatusSummary, error) {
	highlights := make([]string, 30)
	for i := range highlights {
		highlights[i] = "h"
	}
	return models.StatusSummary{Status: models.StatusOnTrack, SummaryText: "fine", Highlights: highlights}, nil
}
func (alwaysImplausible) SummariseProject(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return models.StatusSummary{}, nil
}
func (alwaysImplausible) SummariseEstate(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return models.StatusSummary{}, nil
}

type fixedSummary struct{ summary models.StatusSummary }

func (f fixedSummary) SummariseRepository(ctx context.Context, bundle evidence.Bundle) (models.StatusSummary, error) {
	return f.summary, nil
}
func (f fixedSummary) SummariseProject(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return f.summary, nil
}
func (f fixedSummary) SummariseEstate(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return f.summary, nil
}

func TestRunForRepository_EvidenceEmptyReturnsNone(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	silver := projector.NewMemoryStore(clk)
	gold := goldstore.NewMemoryStore(clk)
	builder := evidence.New(silver, gold)

	o := New(builder, gold, fixedSummary{}, nil, lock.NewInProcess(), eventbus.NoOp{}, clk, zerolog.Nop(), 7*24*time.Hour, 2)

	repo := models.Repository{ID: uuid.New(), Owner: "octostatus", Name: "engine"}
	result, err := o.RunForRepository(ctx, repo)
	require.NoError(t, err)
	require.Equal(t, OutcomeEvidenceEmpty, result.Outcome)
}

func TestRunForRepository_ValidationExhaustionCreatesReview(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	bronze := bronzestore.NewMemoryStore(clk)
	silver := projector.NewMemoryStore(clk)
	gold := goldstore.NewMemoryStore(clk)
	builder := evidence.New(silver, gold)
	repoID := uuid.New()

	seedFact(ctx, t, bronze, silver, repoID, "abc123", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))

	o := New(builder, gold, alwaysImplausible{}, nil, lock.NewInProcess(), eventbus.NoOp{}, clk, zerolog.Nop(), 7*24*time.Hour, 2)
	repo := models.Repository{ID: repoID, Owner: "octostatus", Name: "engine"}

	result, err := o.RunForRepository(ctx, repo)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ValidationFailed))
	require.Equal(t, OutcomeValidationFailed, result.Outcome)
	require.NotNil(t, result.ReviewID)
	require.Len(t, result.Issues, 1)
	require.Equal(t, "implausible_highlights", result.Issues[0].Code)
}

func TestRunForRepository_SuccessPersistsReportAndCoverage(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	bronze := bronzestore.NewMemoryStore(clk)
	silver := projector.NewMemoryStore(clk)
	gold := goldstore.NewMemoryStore(clk)
	builder := evidence.New(silver, gold)
	repoID := uuid.New()

	seedFact(ctx, t, bronze, silver, repoID, "abc123", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))

	summary := models.StatusSummary{Status: models.StatusOnTrack, SummaryText: "all good this week"}
	o := New(builder, gold, fixedSummary{summary: summary}, nil, lock.NewInProcess(), eventbus.NoOp{}, clk, zerolog.Nop(), 7*24*time.Hour, 2)
	repo := models.Repository{ID: repoID, Owner: "octostatus", Name: "engine"}

	result, err := o.RunForRepository(ctx, repo)
	require.NoError(t, err)
	require.Equal(t, OutcomeGenerated, result.Outcome)
	require.NotNil(t, result.Report)

	covered, err := gold.CoveredEventFactIDs(ctx, repoID)
	require.NoError(t, err)
	require.Len(t, covered, 1)
}

func seedFact(ctx context.Context, t *testing.T, bronze *bronzestore.MemoryStore, silver *projector.MemoryStore, repoID uuid.UUID, sha string, occurredAt time.Time) {
	t.Helper()
	fact := models.EventFact{
		ID:                uuid.New(),
		RawEventID:        uuid.New(),
		EventType:         models.EventTypeCommit,
		RepositoryID:      &repoID,
		OccurredAt:        occurredAt,
		NormalisedPayload: []byte(`{"sha":"` + sha + `"}`),
	}
	_, _, err := silver.InsertEventFact(ctx, fact)
	require.NoError(t, err)
}
