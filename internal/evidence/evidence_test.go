package evidence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/goldstore"
	"github.com/octostatus/estate-reporter/internal/models"
	"github.com/octostatus/estate-reporter/internal/projector"
)

func fact(repoID uuid.UUID, occurredAt time.Time, title string, labels []string) models.EventFact {
	payload, _ := json.Marshal(map[string]interface{}{"title": title, "labels": labels})
	return models.EventFact{
		ID:                uuid.New(),
		RawEventID:        uuid.New(),
		EventType:         models.EventTypePullRequest,
		RepositoryID:      &repoID,
		OccurredAt:        occurredAt,
		NormalisedPayload: payload,
	}
}

func TestBuild_ExcludesFactsAlreadyCoveredByAReport(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	silver := projector.NewMemoryStore(clk)
	gold := goldstore.NewMemoryStore(clk)
	repoID := uuid.New()
	windowStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)

	covered := fact(repoID, windowStart.Add(time.Hour), "fix: crash", []string{"bug"})
	fresh := fact(repoID, windowStart.Add(2*time.Hour), "feat: widget", []string{"feature"})

	_, _, err := silver.InsertEventFact(ctx, covered)
	require.NoError(t, err)
	_, _, err = silver.InsertEventFact(ctx, fresh)
	require.NoError(t, err)

	_, err = gold.SaveReport(ctx, models.Report{Scope: models.ScopeRepository, RepositoryID: &repoID}, []uuid.UUID{covered.ID})
	require.NoError(t, err)

	builder := New(silver, gold)
	bundle, err := builder.Build(ctx, repoID, windowStart, windowEnd)
	require.NoError(t, err)

	require.Len(t, bundle.Facts, 1)
	require.Equal(t, fresh.ID, bundle.Facts[0].ID)
}

func TestBuild_GroupsFactsByWorkTypeFromLabelsAndTitle(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	silver := projector.NewMemoryStore(clk)
	gold := goldstore.NewMemoryStore(clk)
	repoID := uuid.New()
	windowStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)

	bug := fact(repoID, windowStart.Add(time.Hour), "crash on boot", []string{"bug"})
	feature := fact(repoID, windowStart.Add(2*time.Hour), "feat: widget", nil)
	refactor := fact(repoID, windowStart.Add(3*time.Hour), "refactor handlers", nil)
	chore := fact(repoID, windowStart.Add(4*time.Hour), "bump deps", nil)

	for _, f := range []models.EventFact{bug, feature, refactor, chore} {
		_, _, err := silver.InsertEventFact(ctx, f)
		require.NoError(t, err)
	}

	builder := New(silver, gold)
	bundle, err := builder.Build(ctx, repoID, windowStart, windowEnd)
	require.NoError(t, err)

	require.Len(t, bundle.Groups[WorkBug], 1)
	require.Len(t, bundle.Groups[WorkFeature], 1)
	require.Len(t, bundle.Groups[WorkRefactor], 1)
	require.Len(t, bundle.Groups[WorkChore], 1)
}

func TestBuild_ExcludesFactsOutsideWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	silver := projector.NewMemoryStore(clk)
	gold := goldstore.NewMemoryStore(clk)
	repoID := uuid.New()
	windowStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)

	before := fact(repoID, windowStart.Add(-time.Hour), "too early", nil)
	after := fact(repoID, windowEnd.Add(time.Hour), "too late", nil)
	inside := fact(repoID, windowStart.Add(time.Hour), "just right", nil)

	for _, f := range []models.EventFact{before, after, inside} {
		_, _, err := silver.InsertEventFact(ctx, f)
		require.NoError(t, err)
	}

	builder := New(silver, gold)
	bundle, err := builder.Build(ctx, repoID, windowStart, windowEnd)
	require.NoError(t, err)

	require.Len(t, bundle.Facts, 1)
	require.Equal(t, inside.ID, bundle.Facts[0].ID)
}

func TestBuild_AttachesUpToTwoPriorReports(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	silver := projector.NewMemoryStore(clk)
	gold := goldstore.NewMemoryStore(clk)
	repoID := uuid.New()

	for i := 0; i < 3; i++ {
		end := time.Date(2026, 1, i+1, 0, 0, 0, 0, time.UTC)
		_, err := gold.SaveReport(ctx, models.Report{Scope: models.ScopeRepository, RepositoryID: &repoID, WindowEnd: end}, nil)
		require.NoError(t, err)
	}

	builder := New(silver, gold)
	bundle, err := builder.Build(ctx, repoID, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	require.LessOrEqual(t, len(bundle.PriorReports), 2)
}
