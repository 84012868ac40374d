package projector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/dbutil"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// PGStore persists the Silver layer into Postgres via sqlx, following the
// same conventions as bronzestore.PGStore and registry.PGStore.
type PGStore struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewPGStore(db *sqlx.DB, clk clock.Clock) *PGStore {
	return &PGStore{db: db, clock: clk}
}

func (s *PGStore) UpsertCommit(ctx context.Context, repoID uuid.UUID, c CommitInput) (models.Commit, error) {
	now := s.clock.Now()
	const query = `
		INSERT INTO commits (id, repository_id, sha, message, author, authored_at, branch, additions, deletions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
		ON CONFLICT (repository_id, sha) DO UPDATE SET
			message = EXCLUDED.message, author = EXCLUDED.author, authored_at = EXCLUDED.authored_at,
			branch = EXCLUDED.branch, additions = EXCLUDED.additions, deletions = EXCLUDED.deletions,
			updated_at = EXCLUDED.updated_at
		RETURNING id, repository_id, sha, message, author, authored_at, branch, additions, deletions, created_at, updated_at
	`
	var commit models.Commit
	row := s.db.QueryRowxContext(ctx, query, uuid.New(), repoID, c.SHA, c.Message, c.Author, c.AuthoredAt, c.Branch, c.Additions, c.Deletions, now)
	if err := row.StructScan(&commit); err != nil {
		return models.Commit{}, classifyDBError(err, "upsert commit")
	}
	return commit, nil
}

func (s *PGStore) UpsertPullRequest(ctx context.Context, repoID uuid.UUID, p PullRequestInput) (models.PullRequest, error) {
	now := s.clock.Now()
	const query = `
		INSERT INTO pull_requests (id, repository_id, number, title, state, author, labels, merged_at, closed_at, updated_at_src, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		ON CONFLICT (repository_id, number) DO UPDATE SET
			title = EXCLUDED.title, state = EXCLUDED.state, author = EXCLUDED.author, labels = EXCLUDED.labels,
			merged_at = EXCLUDED.merged_at, closed_at = EXCLUDED.closed_at, updated_at_src = EXCLUDED.updated_at_src,
			updated_at = EXCLUDED.updated_at
		RETURNING id, repository_id, number, title, state, author, labels, merged_at, closed_at, updated_at_src, created_at, updated_at
	`
	var pr models.PullRequest
	var labels pq.StringArray
	row := s.db.QueryRowxContext(ctx, query, uuid.New(), repoID, p.Number, p.Title, p.State, p.Author, pq.Array(p.Labels), p.MergedAt, p.ClosedAt, p.UpdatedAtSrc, now)
	if err := scanPullRequest(row, &pr, &labels); err != nil {
		return models.PullRequest{}, classifyDBError(err, "upsert pull request")
	}
	pr.Labels = []string(labels)
	return pr, nil
}

func scanPullRequest(row *sqlx.Row, pr *models.PullRequest, labels *pq.StringArray) error {
	return row.Scan(
		&pr.ID, &pr.RepositoryID, &pr.Number, &pr.Title, &pr.State, &pr.Author, labels,
		&pr.MergedAt, &pr.ClosedAt, &pr.UpdatedAtSrc, &pr.CreatedAt, &pr.UpdatedAt,
	)
}

func (s *PGStore) UpsertIssue(ctx context.Context, repoID uuid.UUID, i IssueInput) (models.Issue, error) {
	now := s.clock.Now()
	const query = `
		INSERT INTO issues (id, repository_id, number, title, state, author, labels, closed_at, updated_at_src, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
		ON CONFLICT (repository_id, number) DO UPDATE SET
			title = EXCLUDED.title, state = EXCLUDED.state, author = EXCLUDED.author, labels = EXCLUDED.labels,
			closed_at = EXCLUDED.closed_at, updated_at_src = EXCLUDED.updated_at_src, updated_at = EXCLUDED.updated_at
		RETURNING id, repository_id, number, title, state, author, labels, closed_at, updated_at_src, created_at, updated_at
	`
	var issue models.Issue
	var labels pq.StringArray
	row := s.db.QueryRowxContext(ctx, query, uuid.New(), repoID, i.Number, i.Title, i.State, i.Author, pq.Array(i.Labels), i.ClosedAt, i.UpdatedAtSrc, now)
	if err := row.Scan(
		&issue.ID, &issue.RepositoryID, &issue.Number, &issue.Title, &issue.State, &issue.Author, &labels,
		&issue.ClosedAt, &issue.UpdatedAtSrc, &issue.CreatedAt, &issue.UpdatedAt,
	); err != nil {
		return models.Issue{}, classifyDBError(err, "upsert issue")
	}
	issue.Labels = []string(labels)
	return issue, nil
}

func (s *PGStore) UpsertDocChange(ctx context.Context, repoID uuid.UUID, d DocChangeInput) (models.DocumentationChange, error) {
	now := s.clock.Now()
	const query = `
		INSERT INTO documentation_changes (id, repository_id, commit_sha, path, change_type, occurred_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (repository_id, commit_sha, path) DO UPDATE SET change_type = EXCLUDED.change_type
		RETURNING id, repository_id, commit_sha, path, change_type, occurred_at, created_at
	`
	var doc models.DocumentationChange
	row := s.db.QueryRowxContext(ctx, query, uuid.New(), repoID, d.CommitSHA, d.Path, d.ChangeType, d.OccurredAt, now)
	if err := row.StructScan(&doc); err != nil {
		return models.DocumentationChange{}, classifyDBError(err, "upsert documentation change")
	}
	return doc, nil
}

func (s *PGStore) InsertEventFact(ctx context.Context, fact models.EventFact) (bool, models.EventFact, error) {
	const insertQuery = `
		INSERT INTO event_facts (id, raw_event_id, event_type, repo_external_id, repository_id, occurred_at, normalised_payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (raw_event_id) DO NOTHING
		RETURNING id, raw_event_id, event_type, repo_external_id, repository_id, occurred_at, normalised_payload
	`
	var inserted models.EventFact
	err := s.db.QueryRowxContext(ctx, insertQuery,
		fact.ID, fact.RawEventID, fact.EventType, fact.RepoExternalID, fact.RepositoryID, fact.OccurredAt, fact.NormalisedPayload,
	).StructScan(&inserted)
	if err == nil {
		return true, inserted, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, models.EventFact{}, classifyDBError(err, "insert event fact")
	}

	existing, err := s.GetEventFactByRawEventID(ctx, fact.RawEventID)
	if err != nil {
		return false, models.EventFact{}, err
	}
	return false, existing, nil
}

func (s *PGStore) GetEventFactByRawEventID(ctx context.Context, rawEventID uuid.UUID) (models.EventFact, error) {
	const query = `
		SELECT id, raw_event_id, event_type, repo_external_id, repository_id, occurred_at, normalised_payload
		FROM event_facts WHERE raw_event_id = $1
	`
	var fact models.EventFact
	if err := s.db.GetContext(ctx, &fact, query, rawEventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EventFact{}, ErrNotFound
		}
		return models.EventFact{}, classifyDBError(err, "get event fact by raw event id")
	}
	return fact, nil
}

func (s *PGStore) ListByRepositoryWindow(ctx context.Context, repositoryID uuid.UUID, windowStart, windowEnd time.Time) ([]models.EventFact, error) {
	const query = `
		SELECT id, raw_event_id, event_type, repo_external_id, repository_id, occurred_at, normalised_payload
		FROM event_facts
		WHERE repository_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at ASC, id ASC
	`
	var facts []models.EventFact
	if err := s.db.SelectContext(ctx, &facts, query, repositoryID, windowStart, windowEnd); err != nil {
		return nil, classifyDBError(err, "list event facts by repository window")
	}
	return facts, nil
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
