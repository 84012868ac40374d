package ingestion

import (
	"context"
	"time"

	"github.com/octostatus/estate-reporter/internal/models"
)

// Page is one fetch from a RemoteSource: zero or more envelopes in
// non-decreasing occurred_at order, plus pagination state.
type Page struct {
	Envelopes  []models.RawEventEnvelope
	NextCursor *string
	HasMore    bool
}

// RemoteSource is the boundary the worker depends on to pull source events;
// google/go-github is the production implementation, a fake is used in
// tests.
type RemoteSource interface {
	FetchPage(ctx context.Context, repo models.Repository, stream models.StreamKind, after time.Time, cursor *string, limit int) (Page, error)
}
