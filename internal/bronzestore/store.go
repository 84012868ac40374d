// Package bronzestore implements the Raw Event Store (spec §4.A): an
// append-only, deduplicated log of source payloads.
package bronzestore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/models"
)

// ErrNotFound is returned when a raw event id does not exist.
var ErrNotFound = errors.New("raw event not found")

// Store is the public contract for component A.
type Store interface {
	// Ingest appends env, or returns the existing row if its dedupe key
	// already exists (idempotent; spec §8 Bronze idempotency).
	Ingest(ctx context.Context, env models.RawEventEnvelope) (models.RawEvent, error)

	// ListUnprocessed returns up to limit pending raw events ordered by
	// (occurred_at, id), the deterministic order the projector requires.
	ListUnprocessed(ctx context.Context, limit int) ([]models.RawEvent, error)

	// MarkProcessed records that a raw event has been projected.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkDrift records that projection detected drift (spec §4.B) and
	// will not be retried automatically.
	MarkDrift(ctx context.Context, id uuid.UUID, reason string) error

	// Get fetches a single raw event by id.
	Get(ctx context.Context, id uuid.UUID) (models.RawEvent, error)
}
