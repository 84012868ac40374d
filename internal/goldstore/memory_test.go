package goldstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/models"
)

func TestLatestRepositoryReport_ReturnsErrNotFoundWhenNoneExist(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	_, err := store.LatestRepositoryReport(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLatestRepositoryReport_PicksLatestWindowEnd(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)
	repoID := uuid.New()

	older := models.Report{Scope: models.ScopeRepository, RepositoryID: &repoID, WindowEnd: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := models.Report{Scope: models.ScopeRepository, RepositoryID: &repoID, WindowEnd: time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)}

	_, err := store.SaveReport(ctx, older, nil)
	require.NoError(t, err)
	saved, err := store.SaveReport(ctx, newer, nil)
	require.NoError(t, err)

	latest, err := store.LatestRepositoryReport(ctx, repoID)
	require.NoError(t, err)
	require.Equal(t, saved.ID, latest.ID)
}

func TestCoveredEventFactIDs_AggregatesAcrossReports(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)
	repoID := uuid.New()
	fact1, fact2 := uuid.New(), uuid.New()

	_, err := store.SaveReport(ctx, models.Report{Scope: models.ScopeRepository, RepositoryID: &repoID}, []uuid.UUID{fact1})
	require.NoError(t, err)
	_, err = store.SaveReport(ctx, models.Report{Scope: models.ScopeRepository, RepositoryID: &repoID}, []uuid.UUID{fact2})
	require.NoError(t, err)

	covered, err := store.CoveredEventFactIDs(ctx, repoID)
	require.NoError(t, err)
	require.Len(t, covered, 2)
	_, ok1 := covered[fact1]
	_, ok2 := covered[fact2]
	require.True(t, ok1)
	require.True(t, ok2)
}

func TestUpsertReview_ReusesIDForSameWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)
	repoID := uuid.New()
	windowStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)

	first, err := store.UpsertReview(ctx, models.ReportReview{RepositoryID: repoID, WindowStart: windowStart, WindowEnd: windowEnd, Attempts: 2})
	require.NoError(t, err)

	second, err := store.UpsertReview(ctx, models.ReportReview{RepositoryID: repoID, WindowStart: windowStart, WindowEnd: windowEnd, Attempts: 3})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 3, second.Attempts)
}
