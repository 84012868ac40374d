package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/dbutil"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// PGStore persists the repository registry into Postgres via sqlx,
// following the same shape as bronzestore.PGStore.
type PGStore struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewPGStore(db *sqlx.DB, clk clock.Clock) *PGStore {
	return &PGStore{db: db, clock: clk}
}

func (s *PGStore) UpsertFromCatalogue(ctx context.Context, entry CatalogueEntry) (bool, models.Repository, error) {
	branch := entry.DefaultBranch
	if branch == "" {
		branch = defaultBranch
	}
	now := s.clock.Now()

	const query = `
		INSERT INTO repositories
			(id, owner, name, default_branch, documentation_paths, ingestion_enabled,
			 catalogue_repository_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,true,$6,$7,$7)
		ON CONFLICT (owner, name) DO UPDATE SET
			default_branch = EXCLUDED.default_branch,
			documentation_paths = EXCLUDED.documentation_paths,
			ingestion_enabled = true,
			catalogue_repository_id = EXCLUDED.catalogue_repository_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id, owner, name, default_branch, documentation_paths, ingestion_enabled,
			catalogue_repository_id, created_at, updated_at, (xmax = 0) AS inserted
	`
	var repo models.Repository
	var inserted bool
	row := s.db.QueryRowxContext(ctx, query,
		uuid.New(), entry.Owner, entry.Name, branch, pq.Array(entry.DocumentationPaths),
		entry.CatalogueRepositoryID, now,
	)
	if err := scanRepositoryRow(row, &repo, &inserted); err != nil {
		return false, models.Repository{}, classifyDBError(err, "upsert repository from catalogue")
	}
	return inserted, repo, nil
}

// scanRepositoryRow is a tiny shim so the RETURNING ... inserted column can
// share the same struct-scan path as plain Repository reads.
func scanRepositoryRow(row *sqlx.Row, repo *models.Repository, inserted *bool) error {
	var catalogueID sql.NullString
	var docPaths pq.StringArray
	if err := row.Scan(
		&repo.ID, &repo.Owner, &repo.Name, &repo.DefaultBranch, &docPaths,
		&repo.IngestionEnabled, &catalogueID, &repo.CreatedAt, &repo.UpdatedAt, inserted,
	); err != nil {
		return err
	}
	repo.DocumentationPaths = []string(docPaths)
	if catalogueID.Valid {
		repo.CatalogueRepositoryID = &catalogueID.String
	}
	return nil
}

func (s *PGStore) DisableNotIn(ctx context.Context, keepCatalogueIDs []string) (int, error) {
	const query = `
		UPDATE repositories
		SET ingestion_enabled = false, catalogue_repository_id = NULL, updated_at = $2
		WHERE catalogue_repository_id IS NOT NULL
		  AND NOT (catalogue_repository_id = ANY($1))
	`
	res, err := s.db.ExecContext(ctx, query, pq.Array(keepCatalogueIDs), s.clock.Now())
	if err != nil {
		return 0, classifyDBError(err, "disable repositories not in catalogue")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classifyDBError(err, "count disabled repositories")
	}
	return int(n), nil
}

func (s *PGStore) UpsertAdHoc(ctx context.Context, owner, name, branch string) (models.Repository, error) {
	insertBranch := branch
	if insertBranch == "" {
		insertBranch = defaultBranch
	}
	now := s.clock.Now()
	const query = `
		INSERT INTO repositories (id, owner, name, default_branch, ingestion_enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,false,$5,$5)
		ON CONFLICT (owner, name) DO UPDATE SET
			default_branch = COALESCE(NULLIF($6::text, ''), repositories.default_branch),
			updated_at = CASE WHEN $6::text <> '' AND $6::text <> repositories.default_branch
				THEN $5 ELSE repositories.updated_at END
		RETURNING id, owner, name, default_branch, documentation_paths, ingestion_enabled,
			catalogue_repository_id, created_at, updated_at
	`
	var repo models.Repository
	var catalogueID sql.NullString
	var docPaths pq.StringArray
	row := s.db.QueryRowxContext(ctx, query, uuid.New(), owner, name, insertBranch, now, branch)
	if err := row.Scan(
		&repo.ID, &repo.Owner, &repo.Name, &repo.DefaultBranch, &docPaths,
		&repo.IngestionEnabled, &catalogueID, &repo.CreatedAt, &repo.UpdatedAt,
	); err != nil {
		return models.Repository{}, classifyDBError(err, "upsert ad-hoc repository")
	}
	repo.DocumentationPaths = []string(docPaths)
	if catalogueID.Valid {
		repo.CatalogueRepositoryID = &catalogueID.String
	}
	return repo, nil
}

func (s *PGStore) EnableIngestion(ctx context.Context, owner, name string) error {
	return s.setEnabled(ctx, owner, name, true)
}

func (s *PGStore) DisableIngestion(ctx context.Context, owner, name string) error {
	return s.setEnabled(ctx, owner, name, false)
}

func (s *PGStore) setEnabled(ctx context.Context, owner, name string, enabled bool) error {
	const query = `UPDATE repositories SET ingestion_enabled = $3, updated_at = $4 WHERE owner = $1 AND name = $2`
	res, err := s.db.ExecContext(ctx, query, owner, name, enabled, s.clock.Now())
	if err != nil {
		return classifyDBError(err, "set repository ingestion enabled")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classifyDBError(err, "check rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) GetByOwnerName(ctx context.Context, owner, name string) (models.Repository, error) {
	const query = `
		SELECT id, owner, name, default_branch, documentation_paths, ingestion_enabled,
			catalogue_repository_id, created_at, updated_at
		FROM repositories WHERE owner = $1 AND name = $2
	`
	return s.scanOne(ctx, query, owner, name)
}

func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (models.Repository, error) {
	const query = `
		SELECT id, owner, name, default_branch, documentation_paths, ingestion_enabled,
			catalogue_repository_id, created_at, updated_at
		FROM repositories WHERE id = $1
	`
	return s.scanOne(ctx, query, id)
}

func (s *PGStore) scanOne(ctx context.Context, query string, args ...interface{}) (models.Repository, error) {
	var repo models.Repository
	var catalogueID sql.NullString
	var docPaths pq.StringArray
	row := s.db.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(
		&repo.ID, &repo.Owner, &repo.Name, &repo.DefaultBranch, &docPaths,
		&repo.IngestionEnabled, &catalogueID, &repo.CreatedAt, &repo.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Repository{}, ErrNotFound
		}
		return models.Repository{}, classifyDBError(err, "get repository")
	}
	repo.DocumentationPaths = []string(docPaths)
	if catalogueID.Valid {
		repo.CatalogueRepositoryID = &catalogueID.String
	}
	return repo, nil
}

func (s *PGStore) ListActive(ctx context.Context, limit, offset int) ([]models.Repository, error) {
	const query = `
		SELECT id, owner, name, default_branch, documentation_paths, ingestion_enabled,
			catalogue_repository_id, created_at, updated_at
		FROM repositories
		WHERE ingestion_enabled = true
		ORDER BY owner ASC, name ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryxContext(ctx, query, nullIfZero(limit), offset)
	if err != nil {
		return nil, classifyDBError(err, "list active repositories")
	}
	defer rows.Close()

	var repos []models.Repository
	for rows.Next() {
		var repo models.Repository
		var catalogueID sql.NullString
		var docPaths pq.StringArray
		if err := rows.Scan(
			&repo.ID, &repo.Owner, &repo.Name, &repo.DefaultBranch, &docPaths,
			&repo.IngestionEnabled, &catalogueID, &repo.CreatedAt, &repo.UpdatedAt,
		); err != nil {
			return nil, classifyDBError(err, "scan active repository")
		}
		repo.DocumentationPaths = []string(docPaths)
		if catalogueID.Valid {
			repo.CatalogueRepositoryID = &catalogueID.String
		}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError(err, "iterate active repositories")
	}
	return repos, nil
}

func nullIfZero(n int) interface{} {
	if n <= 0 {
		return nil
	}
	return n
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
