package goldstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/models"
)

// MemoryStore is an in-memory Gold Store for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	clock     clock.Clock
	reports   []models.Report
	coverage  map[uuid.UUID][]uuid.UUID // report_id -> event_fact_ids
	reviews   map[string]models.ReportReview
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clk,
		coverage: map[uuid.UUID][]uuid.UUID{},
		reviews:  map[string]models.ReportReview{},
	}
}

func (m *MemoryStore) LatestRepositoryReport(ctx context.Context, repositoryID uuid.UUID) (models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.Report
	for i := range m.reports {
		r := m.reports[i]
		if r.Scope != models.ScopeRepository || r.RepositoryID == nil || *r.RepositoryID != repositoryID {
			continue
		}
		if latest == nil || r.WindowEnd.After(latest.WindowEnd) {
			latest = &m.reports[i]
		}
	}
	if latest == nil {
		return models.Report{}, ErrNotFound
	}
	return *latest, nil
}

func (m *MemoryStore) RecentRepositoryReports(ctx context.Context, repositoryID uuid.UUID, limit int) ([]models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []models.Report
	for _, r := range m.reports {
		if r.Scope == models.ScopeRepository && r.RepositoryID != nil && *r.RepositoryID == repositoryID {
			matches = append(matches, r)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].WindowEnd.After(matches[j].WindowEnd) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemoryStore) SaveReport(ctx context.Context, report models.Report, coveredEventFactIDs []uuid.UUID) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	m.reports = append(m.reports, report)
	m.coverage[report.ID] = append([]uuid.UUID{}, coveredEventFactIDs...)
	return report, nil
}

func (m *MemoryStore) CoveredEventFactIDs(ctx context.Context, repositoryID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	covered := map[uuid.UUID]struct{}{}
	for _, r := range m.reports {
		if r.Scope != models.ScopeRepository || r.RepositoryID == nil || *r.RepositoryID != repositoryID {
			continue
		}
		for _, factID := range m.coverage[r.ID] {
			covered[factID] = struct{}{}
		}
	}
	return covered, nil
}

func (m *MemoryStore) UpsertReview(ctx context.Context, review models.ReportReview) (models.ReportReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := windowKey(review.RepositoryID, review.WindowStart, review.WindowEnd)
	now := m.clock.Now()
	existing, ok := m.reviews[key]
	if !ok {
		review.ID = uuid.New()
		review.CreatedAt = now
	} else {
		review.ID = existing.ID
		review.CreatedAt = existing.CreatedAt
	}
	review.UpdatedAt = now
	m.reviews[key] = review
	return review, nil
}
