package projector

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/bronzestore"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/models"
)

func commitEnvelope(sha, message string, occurredAt time.Time) models.RawEventEnvelope {
	return models.RawEventEnvelope{
		SourceSystem: "github",
		EventType:    models.EventTypeCommit,
		OccurredAt:   occurredAt,
		Payload: map[string]interface{}{
			"owner":       "octostatus",
			"repo":        "engine",
			"branch":      "main",
			"sha":         sha,
			"message":     message,
			"author":      "ana",
			"authored_at": occurredAt.UTC().Format(time.RFC3339Nano),
			"additions":   3,
			"deletions":   1,
		},
	}
}

func newHarness(t *testing.T) (*bronzestore.MemoryStore, *Projector) {
	t.Helper()
	clk := clock.Fixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bronze := bronzestore.NewMemoryStore(clk)
	silver := NewMemoryStore(clk)
	reg := newFakeRegistry()
	p := New(bronze, silver, reg, clk, zerolog.Nop())
	return bronze, p
}

// fakeRegistry is a minimal RepositoryUpserter double that keeps these
// tests independent of the registry package.
type fakeRegistry struct {
	byKey map[string]models.Repository
}

func newFakeRegistry() *fakeRegistry { return &fakeRegistry{byKey: map[string]models.Repository{}} }

func (f *fakeRegistry) UpsertAdHoc(ctx context.Context, owner, name, branch string) (models.Repository, error) {
	k := owner + "/" + name
	if repo, ok := f.byKey[k]; ok {
		return repo, nil
	}
	repo := models.Repository{Owner: owner, Name: name, DefaultBranch: branch}
	f.byKey[k] = repo
	return repo, nil
}

func TestProcessPending_ProjectsCommitAndMarksProcessed(t *testing.T) {
	ctx := context.Background()
	bronze, p := newHarness(t)

	occurredAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	env := commitEnvelope("abc123", "initial commit", occurredAt)
	raw, err := bronze.Ingest(ctx, env)
	require.NoError(t, err)

	result, err := p.ProcessPending(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 0, result.Drifted)

	stored, err := bronze.Get(ctx, raw.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProcessingProcessed, stored.State)
}

func TestProcessPending_IsIdempotentOnRetriedBatch(t *testing.T) {
	ctx := context.Background()
	bronze, p := newHarness(t)

	occurredAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err := bronze.Ingest(ctx, commitEnvelope("abc123", "initial commit", occurredAt))
	require.NoError(t, err)

	_, err = p.ProcessPending(ctx, 10)
	require.NoError(t, err)

	// Already processed; a second pass should find nothing pending and not error.
	result, err := p.ProcessPending(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 0, result.Processed)
}

func TestNormalisedProjection_IsDeterministicUnderKeyReordering(t *testing.T) {
	occurredAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	orderedA := map[string]interface{}{
		"owner": "octostatus", "repo": "engine", "branch": "main", "sha": "abc123",
		"message": "fix", "author": "ana", "authored_at": occurredAt.Format(time.RFC3339Nano),
		"additions": 1, "deletions": 0,
	}
	bytesA, _ := json.Marshal(orderedA)

	orderedB := map[string]interface{}{
		"deletions": 0, "additions": 1, "authored_at": occurredAt.Format(time.RFC3339Nano),
		"author": "ana", "message": "fix", "sha": "abc123", "branch": "main", "repo": "engine",
		"owner": "octostatus",
	}
	bytesB, _ := json.Marshal(orderedB)

	encodedA, _, err := normalisedProjection(models.EventTypeCommit, bytesA)
	require.NoError(t, err)
	encodedB, _, err := normalisedProjection(models.EventTypeCommit, bytesB)
	require.NoError(t, err)

	require.Equal(t, string(encodedA), string(encodedB))
}

func TestProcessPending_DetectsDriftOnConflictingRewrite(t *testing.T) {
	ctx := context.Background()
	bronze, p := newHarness(t)

	occurredAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	raw, err := bronze.Ingest(ctx, commitEnvelope("abc123", "initial commit", occurredAt))
	require.NoError(t, err)

	_, err = p.ProcessPending(ctx, 10)
	require.NoError(t, err)

	stored, err := bronze.Get(ctx, raw.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProcessingProcessed, stored.State)

	// Simulate a second raw event that maps to the same EventFact key
	// (raw_event_id) but with a different payload, forcing drift.
	var mutated models.RawEvent = stored
	mutated.Payload = []byte(`{"owner":"octostatus","repo":"engine","branch":"main","sha":"abc123","message":"DIFFERENT","author":"ana","authored_at":"2026-01-01T12:00:00Z","additions":1,"deletions":1}`)
	mutated.State = models.ProcessingPending

	_, driftErr := p.projectOne(ctx, mutated)
	require.NoError(t, driftErr)

	refetched, err := bronze.Get(ctx, raw.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProcessingFailedDrift, refetched.State)
}
