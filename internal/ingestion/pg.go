package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/octostatus/estate-reporter/internal/dbutil"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// PGOffsetStore persists ingestion offsets into Postgres via sqlx.
type PGOffsetStore struct {
	db *sqlx.DB
}

func NewPGOffsetStore(db *sqlx.DB) *PGOffsetStore {
	return &PGOffsetStore{db: db}
}

func (s *PGOffsetStore) Get(ctx context.Context, repositoryID uuid.UUID, stream models.StreamKind) (models.IngestionOffset, error) {
	const query = `
		SELECT repository_id, stream_kind, watermark, cursor, updated_at
		FROM ingestion_offsets WHERE repository_id = $1 AND stream_kind = $2
	`
	var offset models.IngestionOffset
	if err := s.db.GetContext(ctx, &offset, query, repositoryID, stream); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.IngestionOffset{}, ErrNotFound
		}
		return models.IngestionOffset{}, classifyDBError(err, "get ingestion offset")
	}
	return offset, nil
}

func (s *PGOffsetStore) Upsert(ctx context.Context, offset models.IngestionOffset) error {
	const query = `
		INSERT INTO ingestion_offsets (repository_id, stream_kind, watermark, cursor, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (repository_id, stream_kind) DO UPDATE SET
			watermark = EXCLUDED.watermark, cursor = EXCLUDED.cursor, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, offset.RepositoryID, offset.StreamKind, offset.Watermark, offset.Cursor, offset.UpdatedAt)
	if err != nil {
		return classifyDBError(err, "upsert ingestion offset")
	}
	return nil
}

func (s *PGOffsetStore) ListAll(ctx context.Context) ([]models.IngestionOffset, error) {
	const query = `SELECT repository_id, stream_kind, watermark, cursor, updated_at FROM ingestion_offsets`
	var offsets []models.IngestionOffset
	if err := s.db.SelectContext(ctx, &offsets, query); err != nil {
		return nil, classifyDBError(err, "list ingestion offsets")
	}
	return offsets, nil
}

func classifyDBError(err error, context string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if dbutil.IsConnectivityError(err) {
		return errs.Wrap(errs.DatabaseConnectivity, err, context)
	}
	if dbutil.IsConstraintViolation(err) {
		return errs.Wrap(errs.DataIntegrity, err, context)
	}
	return fmt.Errorf("%s: %w", context, err)
}
