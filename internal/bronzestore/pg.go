package bronzestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/dbutil"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// PGStore persists raw events into Postgres via sqlx, following the
// teacher's eval-engine/internal/store.PGStore shape: a *sqlx.DB field,
// one method per Store operation, errors wrapped with call-site context.
type PGStore struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewPGStore(db *sqlx.DB, clk clock.Clock) *PGStore {
	return &PGStore{db: db, clock: clk}
}

func (s *PGStore) Ingest(ctx context.Context, env models.RawEventEnvelope) (models.RawEvent, error) {
	candidate, err := prepareRawEvent(s.clock.Now(), env)
	if err != nil {
		return models.RawEvent{}, err
	}

	const insertQuery = `
		INSERT INTO raw_events
			(id, source_system, event_type, source_event_id, repo_external_id,
			 occurred_at, ingested_at, payload, dedupe_key, state)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING id, source_system, event_type, source_event_id, repo_external_id,
			occurred_at, ingested_at, payload, dedupe_key, processed_at, state, failure_reason
	`
	var inserted models.RawEvent
	err = s.db.QueryRowxContext(ctx, insertQuery,
		candidate.ID, candidate.SourceSystem, candidate.EventType, candidate.SourceEventID, candidate.RepoExternalID,
		candidate.OccurredAt, candidate.IngestedAt, candidate.Payload, candidate.DedupeKey, candidate.State,
	).StructScan(&inserted)
	if err == nil {
		return inserted, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.RawEvent{}, classifyDBError(err, "insert raw event")
	}

	existing, err := s.getByDedupeKey(ctx, candidate.DedupeKey)
	if err != nil {
		return models.RawEvent{}, err
	}
	return existing, nil
}

func (s *PGStore) getByDedupeKey(ctx context.Context, dedupeKey string) (models.RawEvent, error) {
	const query = `
		SELECT id, source_system, event_type, source_event_id, repo_external_id,
			occurred_at, ingested_at, payload, dedupe_key, processed_at, state, failure_reason
		FROM raw_events WHERE dedupe_key = $1
	`
	var ev models.RawEvent
	if err := s.db.GetContext(ctx, &ev, query, dedupeKey); err != nil {
		return models.RawEvent{}, classifyDBError(err, "fetch raw event by dedupe key")
	}
	return ev, nil
}

func (s *PGStore) ListUnprocessed(ctx context.Context, limit int) ([]models.RawEvent, error) {
	const query = `
		SELECT id, source_system, event_type, source_event_id, repo_external_id,
			occurred_at, ingested_at, payload, dedupe_key, processed_at, state, failure_reason
		FROM raw_events
		WHERE state = $1
		ORDER BY occurred_at ASC, id ASC
		LIMIT $2
	`
	var events []models.RawEvent
	if err := s.db.SelectContext(ctx, &events, query, models.ProcessingPending, limit); err != nil {
		return nil, classifyDBError(err, "list unprocessed raw events")
	}
	return events, nil
}

func (s *PGStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE raw_events SET processed_at = $2, state = $3 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, s.clock.Now(), models.ProcessingProcessed)
	if err != nil {
		return classifyDBError(err, "mark raw event processed")
	}
	return requireOneRowAffected(res)
}

func (s *PGStore) MarkDrift(ctx context.Context, id uuid.UUID, reason string) error {
	const query = `UPDATE raw_events SET processed_at = $2, state = $3, failure_reason = $4 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, s.clock.Now(), models.ProcessingFailedDrift, reason)
	if err != nil {
		return classifyDBError(err, "mark raw event drift")
	}
	return requireOneRowAffected(res)
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (models.RawEvent, error) {
	const query = `
		SELECT id, source_system, event_type, source_event_id, repo_external_id,
			occurred_at, ingested_at, payload, dedupe_key, processed_at, state, failure_reason
		FROM raw_events WHERE id = $1
	`
	var ev models.RawEvent
	if err := s.db.GetContext(ctx, &ev, query, id); err != nil {
		return models.RawEvent{}, classifyDBError(err, "get raw event")
	}
	return ev, nil
}

func requireOneRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classifyDBError(err, "check rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// classifyDBError maps a database/sql or lib/pq error into the taxonomy
// from spec §7, distinguishing not-found, connectivity, and constraint
// violations as data_integrity vs a generic database_error.
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
