package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/models"
)

const defaultBranch = "main"

// MemoryStore is an in-memory Store for tests, keyed by (owner, name) with
// a secondary id index, mirroring the teacher's memory-store convention.
type MemoryStore struct {
	mu    sync.RWMutex
	clock clock.Clock
	byKey map[string]models.Repository
	byID  map[uuid.UUID]string
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock: clk,
		byKey: map[string]models.Repository{},
		byID:  map[uuid.UUID]string{},
	}
}

func key(owner, name string) string { return owner + "/" + name }

func (m *MemoryStore) UpsertFromCatalogue(ctx context.Context, entry CatalogueEntry) (bool, models.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	k := key(entry.Owner, entry.Name)
	existing, ok := m.byKey[k]
	branch := entry.DefaultBranch
	if branch == "" {
		branch = defaultBranch
	}
	catalogueID := entry.CatalogueRepositoryID
	if !ok {
		repo := models.Repository{
			ID:                    uuid.New(),
			Owner:                 entry.Owner,
			Name:                  entry.Name,
			DefaultBranch:         branch,
			DocumentationPaths:    entry.DocumentationPaths,
			IngestionEnabled:      true,
			CatalogueRepositoryID: &catalogueID,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		m.byKey[k] = repo
		m.byID[repo.ID] = k
		return true, repo, nil
	}
	existing.DefaultBranch = branch
	existing.DocumentationPaths = entry.DocumentationPaths
	existing.IngestionEnabled = true
	existing.CatalogueRepositoryID = &catalogueID
	existing.UpdatedAt = now
	m.byKey[k] = existing
	return false, existing, nil
}

func (m *MemoryStore) DisableNotIn(ctx context.Context, keepCatalogueIDs []string) (int, error) {
	keep := make(map[string]struct{}, len(keepCatalogueIDs))
	for _, id := range keepCatalogueIDs {
		keep[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	now := m.clock.Now()
	for k, repo := range m.byKey {
		if repo.CatalogueRepositoryID == nil {
			continue
		}
		if _, ok := keep[*repo.CatalogueRepositoryID]; ok {
			continue
		}
		repo.IngestionEnabled = false
		repo.CatalogueRepositoryID = nil
		repo.UpdatedAt = now
		m.byKey[k] = repo
		count++
	}
	return count, nil
}

func (m *MemoryStore) UpsertAdHoc(ctx context.Context, owner, name, branch string) (models.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(owner, name)
	now := m.clock.Now()
	existing, ok := m.byKey[k]
	if !ok {
		if branch == "" {
			branch = defaultBranch
		}
		repo := models.Repository{
			ID:               uuid.New(),
			Owner:            owner,
			Name:             name,
			DefaultBranch:    branch,
			IngestionEnabled: false,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		m.byKey[k] = repo
		m.byID[repo.ID] = k
		return repo, nil
	}
	if branch != "" && branch != existing.DefaultBranch {
		existing.DefaultBranch = branch
		existing.UpdatedAt = now
		m.byKey[k] = existing
	}
	return existing, nil
}

func (m *MemoryStore) EnableIngestion(ctx context.Context, owner, name string) error {
	return m.setEnabled(owner, name, true)
}

func (m *MemoryStore) DisableIngestion(ctx context.Context, owner, name string) error {
	return m.setEnabled(owner, name, false)
}

func (m *MemoryStore) setEnabled(owner, name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(owner, name)
	repo, ok := m.byKey[k]
	if !ok {
		return ErrNotFound
	}
	repo.IngestionEnabled = enabled
	repo.UpdatedAt = m.clock.Now()
	m.byKey[k] = repo
	return nil
}

func (m *MemoryStore) GetByOwnerName(ctx context.Context, owner, name string) (models.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repo, ok := m.byKey[key(owner, name)]
	if !ok {
		return models.Repository{}, ErrNotFound
	}
	return repo, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (models.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.byID[id]
	if !ok {
		return models.Repository{}, ErrNotFound
	}
	return m.byKey[k], nil
}

func (m *MemoryStore) ListActive(ctx context.Context, limit, offset int) ([]models.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active []models.Repository
	for _, repo := range m.byKey {
		if repo.IngestionEnabled {
			active = append(active, repo)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Owner == active[j].Owner {
			return active[i].Name < active[j].Name
		}
		return active[i].Owner < active[j].Owner
	})
	if offset >= len(active) {
		return nil, nil
	}
	active = active[offset:]
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}
