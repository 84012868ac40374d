package registry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/octostatus/estate-reporter/internal/models"
)

// CatalogueSource fetches the current membership of an estate. Parsing the
// underlying YAML catalogue file is an external collaborator (spec §1);
// this interface is the boundary the registry depends on instead.
type CatalogueSource interface {
	FetchEstate(ctx context.Context, estateKey string) ([]CatalogueEntry, error)
}

// SyncResult summarises the effect of one sync_from_catalogue run.
type SyncResult struct {
	Created  int
	Updated  int
	Disabled int
}

// Registry implements component C.
type Registry struct {
	store  Store
	source CatalogueSource
	logger zerolog.Logger
}

func New(store Store, source CatalogueSource, logger zerolog.Logger) *Registry {
	return &Registry{store: store, source: source, logger: logger}
}

// SyncFromCatalogue upserts every repository the catalogue currently lists
// for estateKey, enabling ingestion and linking catalogue_repository_id,
// then disables ingestion on rows the catalogue no longer lists (spec §4.C).
func (r *Registry) SyncFromCatalogue(ctx context.Context, estateKey string) (SyncResult, error) {
	entries, err := r.source.FetchEstate(ctx, estateKey)
	if err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	keepIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		keepIDs = append(keepIDs, entry.CatalogueRepositoryID)
		created, _, err := r.store.UpsertFromCatalogue(ctx, entry)
		if err != nil {
			return SyncResult{}, err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	disabled, err := r.store.DisableNotIn(ctx, keepIDs)
	if err != nil {
		return SyncResult{}, err
	}
	result.Disabled = disabled

	r.logger.Info().
		Str("estate_key", estateKey).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("disabled", result.Disabled).
		Msg("catalogue sync complete")
	return result, nil
}

func (r *Registry) EnableIngestion(ctx context.Context, owner, name string) error {
	return r.store.EnableIngestion(ctx, owner, name)
}

func (r *Registry) DisableIngestion(ctx context.Context, owner, name string) error {
	return r.store.DisableIngestion(ctx, owner, name)
}

func (r *Registry) ListActive(ctx context.Context, limit, offset int) ([]models.Repository, error) {
	return r.store.ListActive(ctx, limit, offset)
}

func (r *Registry) GetByOwnerName(ctx context.Context, owner, name string) (models.Repository, error) {
	return r.store.GetByOwnerName(ctx, owner, name)
}
