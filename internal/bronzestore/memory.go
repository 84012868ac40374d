package bronzestore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/models"
)

// MemoryStore is an in-memory Store implementation for tests, grounded on
// the teacher's eval-engine/internal/store.MemoryStore pattern of a
// mutex-guarded map plus a secondary index for uniqueness lookups.
type MemoryStore struct {
	mu         sync.RWMutex
	clock      clock.Clock
	byID       map[uuid.UUID]models.RawEvent
	byDedupeKey map[string]uuid.UUID
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock:       clk,
		byID:        map[uuid.UUID]models.RawEvent{},
		byDedupeKey: map[string]uuid.UUID{},
	}
}

func (m *MemoryStore) Ingest(ctx context.Context, env models.RawEventEnvelope) (models.RawEvent, error) {
	candidate, err := prepareRawEvent(m.clock.Now(), env)
	if err != nil {
		return models.RawEvent{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existingID, ok := m.byDedupeKey[candidate.DedupeKey]; ok {
		return m.byID[existingID], nil
	}
	m.byID[candidate.ID] = candidate
	m.byDedupeKey[candidate.DedupeKey] = candidate.ID
	return candidate, nil
}

func (m *MemoryStore) ListUnprocessed(ctx context.Context, limit int) ([]models.RawEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var pending []models.RawEvent
	for _, ev := range m.byID {
		if ev.State == models.ProcessingPending {
			pending = append(pending, ev)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].OccurredAt.Equal(pending[j].OccurredAt) {
			return pending[i].ID.String() < pending[j].ID.String()
		}
		return pending[i].OccurredAt.Before(pending[j].OccurredAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *MemoryStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	now := m.clock.Now()
	ev.ProcessedAt = &now
	ev.State = models.ProcessingProcessed
	m.byID[id] = ev
	return nil
}

func (m *MemoryStore) MarkDrift(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	now := m.clock.Now()
	ev.ProcessedAt = &now
	ev.State = models.ProcessingFailedDrift
	ev.FailureReason = &reason
	m.byID[id] = ev
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (models.RawEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.byID[id]
	if !ok {
		return models.RawEvent{}, ErrNotFound
	}
	return ev, nil
}
