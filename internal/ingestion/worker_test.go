package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/bronzestore"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/eventbus"
	"github.com/octostatus/estate-reporter/internal/models"
)

// fakeSource serves pre-baked pages per stream, ignoring watermark/cursor
// filtering (the worker is responsible for persisting what it's handed).
type fakeSource struct {
	pages map[models.StreamKind][]Page
	calls map[models.StreamKind]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{pages: map[models.StreamKind][]Page{}, calls: map[models.StreamKind]int{}}
}

func (f *fakeSource) FetchPage(ctx context.Context, repo models.Repository, stream models.StreamKind, after time.Time, cursor *string, limit int) (Page, error) {
	seq := f.pages[stream]
	idx := f.calls[stream]
	f.calls[stream]++
	if idx >= len(seq) {
		return Page{}, nil
	}
	return seq[idx], nil
}

func commitEnv(sha string, occurredAt time.Time) models.RawEventEnvelope {
	return models.RawEventEnvelope{
		SourceSystem: "github",
		EventType:    models.EventTypeCommit,
		OccurredAt:   occurredAt,
		Payload: map[string]interface{}{
			"owner": "octostatus", "repo": "engine", "branch": "main",
			"sha": sha, "message": "m", "author": "a",
			"authored_at": occurredAt.UTC().Format(time.RFC3339Nano),
			"additions": 1, "deletions": 0,
		},
	}
}

func TestIngestRepository_AdvancesWatermarkOnSuccess(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	bronze := bronzestore.NewMemoryStore(clk)
	offsets := NewMemoryOffsetStore()
	source := newFakeSource()

	t1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	source.pages[models.StreamCommits] = []Page{
		{Envelopes: []models.RawEventEnvelope{commitEnv("a1", t1), commitEnv("a2", t2)}},
	}

	w := NewWorker(bronze, offsets, source, eventbus.NoOp{}, clk, zerolog.Nop(), 7*24*time.Hour, 200)
	repo := models.Repository{ID: uuid.New(), Owner: "octostatus", Name: "engine", DefaultBranch: "main"}

	result := w.IngestRepository(ctx, repo)
	require.Equal(t, RunSucceeded, result.State)
	require.Equal(t, 2, result.Appended)

	offset, err := offsets.Get(ctx, repo.ID, models.StreamCommits)
	require.NoError(t, err)
	require.True(t, offset.Watermark.Equal(t2))
	require.Nil(t, offset.Cursor)
}

func TestIngestRepository_EmitsTruncatedWhenMaxEventsReached(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	bronze := bronzestore.NewMemoryStore(clk)
	offsets := NewMemoryOffsetStore()
	source := newFakeSource()

	t1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	cursor := "2"
	source.pages[models.StreamCommits] = []Page{
		{Envelopes: []models.RawEventEnvelope{commitEnv("a1", t1), commitEnv("a2", t2)}, HasMore: true, NextCursor: &cursor},
	}

	w := NewWorker(bronze, offsets, source, eventbus.NoOp{}, clk, zerolog.Nop(), 7*24*time.Hour, 2)
	repo := models.Repository{ID: uuid.New(), Owner: "octostatus", Name: "engine", DefaultBranch: "main"}

	result := w.IngestRepository(ctx, repo)
	require.Equal(t, RunSucceeded, result.State)
	require.Contains(t, result.Truncated, models.StreamCommits)

	offset, err := offsets.Get(ctx, repo.ID, models.StreamCommits)
	require.NoError(t, err)
	require.NotNil(t, offset.Cursor)
	require.Equal(t, cursor, *offset.Cursor)
}
