package health

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/ingestion"
	"github.com/octostatus/estate-reporter/internal/models"
)

func TestStalledRepositories_FlagsLaggingRepository(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	offsets := ingestion.NewMemoryOffsetStore()

	freshRepo := uuid.New()
	staleRepo := uuid.New()

	require.NoError(t, offsets.Upsert(ctx, models.IngestionOffset{
		RepositoryID: freshRepo, StreamKind: models.StreamCommits,
		Watermark: clk.Now().Add(-time.Minute),
	}))
	require.NoError(t, offsets.Upsert(ctx, models.IngestionOffset{
		RepositoryID: staleRepo, StreamKind: models.StreamCommits,
		Watermark: clk.Now().Add(-48 * time.Hour),
	}))

	svc := New(offsets, clk, time.Hour)
	stalled, err := svc.StalledRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	require.Equal(t, staleRepo, stalled[0].RepositoryID)
}

func TestLagForRepositories_TreatsMissingOffsetAsStalled(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	offsets := ingestion.NewMemoryOffsetStore()
	svc := New(offsets, clk, time.Hour)

	neverIngested := uuid.New()
	lags, err := svc.LagForRepositories(ctx, []uuid.UUID{neverIngested})
	require.NoError(t, err)
	require.Len(t, lags, 1)
	require.True(t, lags[0].IsStalled)
}
