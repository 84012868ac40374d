package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/eventbus"
	"github.com/octostatus/estate-reporter/internal/goldstore"
	"github.com/octostatus/estate-reporter/internal/lock"
	"github.com/octostatus/estate-reporter/internal/models"
	"github.com/octostatus/estate-reporter/internal/projector"
	"github.com/octostatus/estate-reporter/internal/registry"
	"github.com/octostatus/estate-reporter/internal/reporting"
)

type fixedSummaryModel struct{ summary models.StatusSummary }

func (f fixedSummaryModel) SummariseRepository(ctx context.Context, bundle evidence.Bundle) (models.StatusSummary, error) {
	return f.summary, nil
}
func (f fixedSummaryModel) SummariseProject(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return f.summary, nil
}
func (f fixedSummaryModel) SummariseEstate(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error) {
	return f.summary, nil
}

func newTestServer(t *testing.T) (*Server, models.Repository) {
	t.Helper()
	clk := clock.Fixed(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	store := registry.NewMemoryStore(clk)
	reg := registry.New(store, nil, zerolog.Nop())

	_, _, err := store.UpsertFromCatalogue(context.Background(), registry.CatalogueEntry{
		CatalogueRepositoryID: "cat-1", Owner: "octostatus", Name: "engine",
	})
	require.NoError(t, err)
	repo, err := reg.GetByOwnerName(context.Background(), "octostatus", "engine")
	require.NoError(t, err)

	silver := projector.NewMemoryStore(clk)
	gold := goldstore.NewMemoryStore(clk)
	builder := evidence.New(silver, gold)

	fact := models.EventFact{
		ID: uuid.New(), RawEventID: uuid.New(), EventType: models.EventTypeCommit,
		RepositoryID: &repo.ID, OccurredAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		NormalisedPayload: []byte(`{"sha":"abc123"}`),
	}
	_, _, err = silver.InsertEventFact(context.Background(), fact)
	require.NoError(t, err)

	model := fixedSummaryModel{summary: models.StatusSummary{Status: models.StatusOnTrack, SummaryText: "all good"}}
	orchestrator := reporting.New(builder, gold, model, nil, lock.NewInProcess(), eventbus.NoOp{}, clk, zerolog.Nop(), 7*24*time.Hour, 2)

	return New(reg, orchestrator, zerolog.Nop(), ""), repo
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGenerateReport_UnknownRepositoryReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/reports/repositories/nope/nope", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGenerateReport_SuccessReturns200WithMetadata(t *testing.T) {
	s, repo := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/reports/repositories/"+repo.Owner+"/"+repo.Name, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, repo.Owner+"/"+repo.Name, body["repository"])
	require.Equal(t, "on_track", body["status"])
}
