package ingestion

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/models"
)

// MemoryOffsetStore is an in-memory OffsetStore for tests.
type MemoryOffsetStore struct {
	mu   sync.RWMutex
	byID map[string]models.IngestionOffset
}

func NewMemoryOffsetStore() *MemoryOffsetStore {
	return &MemoryOffsetStore{byID: map[string]models.IngestionOffset{}}
}

func offsetKey(repositoryID uuid.UUID, stream models.StreamKind) string {
	return repositoryID.String() + ":" + string(stream)
}

func (m *MemoryOffsetStore) Get(ctx context.Context, repositoryID uuid.UUID, stream models.StreamKind) (models.IngestionOffset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	offset, ok := m.byID[offsetKey(repositoryID, stream)]
	if !ok {
		return models.IngestionOffset{}, ErrNotFound
	}
	return offset, nil
}

func (m *MemoryOffsetStore) Upsert(ctx context.Context, offset models.IngestionOffset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[offsetKey(offset.RepositoryID, offset.StreamKind)] = offset
	return nil
}

func (m *MemoryOffsetStore) ListAll(ctx context.Context) ([]models.IngestionOffset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	offsets := make([]models.IngestionOffset, 0, len(m.byID))
	for _, o := range m.byID {
		offsets = append(offsets, o)
	}
	return offsets, nil
}
