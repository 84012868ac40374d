// Package ingestion implements the Ingestion Worker (spec component D):
// watermark-based, paginated pulls from a remote source into Bronze.
package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/models"
)

// ErrNotFound is returned when no offset row exists yet for a stream.
var ErrNotFound = errors.New("ingestion offset not found")

// OffsetStore persists the per-(repository, stream) watermark and cursor.
type OffsetStore interface {
	Get(ctx context.Context, repositoryID uuid.UUID, stream models.StreamKind) (models.IngestionOffset, error)
	Upsert(ctx context.Context, offset models.IngestionOffset) error
	ListAll(ctx context.Context) ([]models.IngestionOffset, error)
}
