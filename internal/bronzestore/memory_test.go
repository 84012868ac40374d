package bronzestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/models"
)

func commitEnvelope(sha string, occurredAt time.Time) models.RawEventEnvelope {
	return models.RawEventEnvelope{
		SourceSystem: "github",
		EventType:    models.EventTypeCommit,
		OccurredAt:   occurredAt,
		Payload:      map[string]interface{}{"sha": sha, "message": "fix bug"},
	}
}

func TestIngest_IsIdempotentOnIdenticalPayload(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	env := commitEnvelope("abc123", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))

	first, err := store.Ingest(ctx, env)
	require.NoError(t, err)

	second, err := store.Ingest(ctx, env)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	pending, err := store.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestIngest_DistinctPayloadsProduceDistinctDedupeKeys(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	a, err := store.Ingest(ctx, commitEnvelope("abc123", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	b, err := store.Ingest(ctx, commitEnvelope("def456", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	require.NotEqual(t, a.ID, b.ID)
	require.NotEqual(t, a.DedupeKey, b.DedupeKey)
}

func TestIngest_RejectsZeroOccurredAt(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	_, err := store.Ingest(ctx, models.RawEventEnvelope{SourceSystem: "github", EventType: models.EventTypeCommit})
	require.Error(t, err)
}

func TestListUnprocessed_OrdersByOccurredAtThenID(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	later := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)

	_, err := store.Ingest(ctx, commitEnvelope("later", later))
	require.NoError(t, err)
	_, err = store.Ingest(ctx, commitEnvelope("earlier", earlier))
	require.NoError(t, err)

	pending, err := store.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.True(t, pending[0].OccurredAt.Before(pending[1].OccurredAt))
}

func TestMarkProcessed_RemovesFromUnprocessed(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	env, err := store.Ingest(ctx, commitEnvelope("abc123", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	require.NoError(t, store.MarkProcessed(ctx, env.ID))

	pending, err := store.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	got, err := store.Get(ctx, env.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProcessingProcessed, got.State)
}

func TestMarkDrift_SetsDriftStateWithReason(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)

	env, err := store.Ingest(ctx, commitEnvelope("abc123", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	require.NoError(t, store.MarkDrift(ctx, env.ID, "drift"))

	got, err := store.Get(ctx, env.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProcessingFailedDrift, got.State)
}
