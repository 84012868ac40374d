package goldstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/dbutil"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// PGStore persists the Gold layer into Postgres via sqlx.
type PGStore struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewPGStore(db *sqlx.DB, clk clock.Clock) *PGStore {
	return &PGStore{db: db, clock: clk}
}

func (s *PGStore) LatestRepositoryReport(ctx context.Context, repositoryID uuid.UUID) (models.Report, error) {
	const query = `
		SELECT id, scope, repository_id, project_id, window_start, window_end, model, status, human_text,
			machine_summary, model_latency_ms, prompt_tokens, completion_tokens, total_tokens, generated_at
		FROM reports WHERE scope = 'repository' AND repository_id = $1
		ORDER BY window_end DESC LIMIT 1
	`
	var report models.Report
	if err := s.db.GetContext(ctx, &report, query, repositoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Report{}, ErrNotFound
		}
		return models.Report{}, classifyDBError(err, "get latest repository report")
	}
	return report, nil
}

func (s *PGStore) RecentRepositoryReports(ctx context.Context, repositoryID uuid.UUID, limit int) ([]models.Report, error) {
	const query = `
		SELECT id, scope, repository_id, project_id, window_start, window_end, model, status, human_text,
			machine_summary, model_latency_ms, prompt_tokens, completion_tokens, total_tokens, generated_at
		FROM reports WHERE scope = 'repository' AND repository_id = $1
		ORDER BY window_end DESC LIMIT $2
	`
	var reports []models.Report
	if err := s.db.SelectContext(ctx, &reports, query, repositoryID, limit); err != nil {
		return nil, classifyDBError(err, "list recent repository reports")
	}
	return reports, nil
}

func (s *PGStore) SaveReport(ctx context.Context, report models.Report, coveredEventFactIDs []uuid.UUID) (models.Report, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Report{}, classifyDBError(err, "begin save report transaction")
	}
	defer tx.Rollback()

	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}

	const insertReport = `
		INSERT INTO reports (id, scope, repository_id, project_id, window_start, window_end, model, status,
			human_text, machine_summary, model_latency_ms, prompt_tokens, completion_tokens, total_tokens, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	if _, err := tx.ExecContext(ctx, insertReport,
		report.ID, report.Scope, report.RepositoryID, report.ProjectID, report.WindowStart, report.WindowEnd,
		report.Model, report.Status, report.HumanText, report.MachineSummary, report.ModelLatencyMs,
		report.PromptTokens, report.CompletionTokens, report.TotalTokens, report.GeneratedAt,
	); err != nil {
		return models.Report{}, classifyDBError(err, "insert report")
	}

	if len(coveredEventFactIDs) > 0 {
		const insertCoverage = `INSERT INTO report_coverage (report_id, event_fact_id) VALUES ($1, $2)`
		for _, factID := range coveredEventFactIDs {
			if _, err := tx.ExecContext(ctx, insertCoverage, report.ID, factID); err != nil {
				return models.Report{}, classifyDBError(err, "insert report coverage")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Report{}, classifyDBError(err, "commit save report transaction")
	}
	return report, nil
}

func (s *PGStore) CoveredEventFactIDs(ctx context.Context, repositoryID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	const query = `
		SELECT rc.event_fact_id
		FROM report_coverage rc
		JOIN reports r ON r.id = rc.report_id
		WHERE r.scope = 'repository' AND r.repository_id = $1
	`
	var ids []uuid.UUID
	if err := s.db.SelectContext(ctx, &ids, query, repositoryID); err != nil {
		return nil, classifyDBError(err, "list covered event fact ids")
	}
	covered := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		covered[id] = struct{}{}
	}
	return covered, nil
}

func (s *PGStore) UpsertReview(ctx context.Context, review models.ReportReview) (models.ReportReview, error) {
	now := s.clock.Now()
	issuesJSON, err := json.Marshal(review.Issues)
	if err != nil {
		return models.ReportReview{}, fmt.Errorf("marshal review issues: %w", err)
	}

	const query = `
		INSERT INTO report_reviews (id, repository_id, window_start, window_end, attempts, issues, state, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		ON CONFLICT (repository_id, window_start, window_end) DO UPDATE SET
			attempts = EXCLUDED.attempts, issues = EXCLUDED.issues, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
		RETURNING id, repository_id, window_start, window_end, attempts, issues, state, created_at, updated_at
	`
	var saved models.ReportReview
	var issuesRaw []byte
	row := s.db.QueryRowxContext(ctx, query,
		uuid.New(), review.RepositoryID, review.WindowStart, review.WindowEnd, review.Attempts, issuesJSON, review.State, now,
	)
	if err := row.Scan(
		&saved.ID, &saved.RepositoryID, &saved.WindowStart, &saved.WindowEnd, &saved.Attempts, &issuesRaw,
		&saved.State, &saved.CreatedAt, &saved.UpdatedAt,
	); err != nil {
		return models.ReportReview{}, classifyDBError(err, "upsert report review")
	}
	if err := json.Unmarshal(issuesRaw, &saved.Issues); err != nil {
		return models.ReportReview{}, fmt.Errorf("unmarshal review issues: %w", err)
	}
	return saved, nil
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
