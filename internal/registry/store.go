// Package registry implements the Repository Registry (spec §4.C): the
// authoritative list of managed repositories and their ingestion toggle.
package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/models"
)

// ErrNotFound is returned when a repository cannot be located.
var ErrNotFound = errors.New("repository not found")

// CatalogueEntry is one row of an already-loaded estate catalogue. Parsing
// the catalogue file itself is out of scope (spec §1); the registry only
// consumes entries handed to it.
type CatalogueEntry struct {
	CatalogueRepositoryID string
	Owner                 string
	Name                  string
	DefaultBranch         string
	DocumentationPaths    []string
}

// Store is the persistence contract backing the registry.
type Store interface {
	// UpsertFromCatalogue creates or updates a Repository row keyed on
	// (owner, name), marking it ingestion_enabled and linking
	// catalogue_repository_id. Reports whether the row was newly created.
	UpsertFromCatalogue(ctx context.Context, entry CatalogueEntry) (created bool, repo models.Repository, err error)

	// DisableNotIn clears ingestion_enabled and catalogue_repository_id on
	// every row whose catalogue_repository_id is set but not present in
	// keepCatalogueIDs. Returns the count of rows disabled.
	DisableNotIn(ctx context.Context, keepCatalogueIDs []string) (int, error)

	// UpsertAdHoc creates a Repository row for an owner/name pair the
	// catalogue has never seen, per spec §4.B step 1. If the repository
	// exists, its default_branch is updated when branch is non-empty and
	// differs; otherwise the current row is returned unchanged.
	// When creating, default_branch defaults to "main" unless branch is
	// non-empty; newly created rows start ingestion_enabled=false.
	UpsertAdHoc(ctx context.Context, owner, name, branch string) (models.Repository, error)

	EnableIngestion(ctx context.Context, owner, name string) error
	DisableIngestion(ctx context.Context, owner, name string) error

	GetByOwnerName(ctx context.Context, owner, name string) (models.Repository, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Repository, error)

	ListActive(ctx context.Context, limit, offset int) ([]models.Repository, error)
}
