package projector

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/models"
)

// MemoryStore is an in-memory Silver Store, keyed by natural key per
// entity kind, mirroring bronzestore.MemoryStore.
type MemoryStore struct {
	mu    sync.RWMutex
	clock clock.Clock

	commitsBySHA    map[string]models.Commit
	prsByRepoNumber map[string]models.PullRequest
	issByRepoNumber map[string]models.Issue
	docsByKey       map[string]models.DocumentationChange

	factsByRawEventID map[uuid.UUID]models.EventFact
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock:             clk,
		commitsBySHA:      map[string]models.Commit{},
		prsByRepoNumber:   map[string]models.PullRequest{},
		issByRepoNumber:   map[string]models.Issue{},
		docsByKey:         map[string]models.DocumentationChange{},
		factsByRawEventID: map[uuid.UUID]models.EventFact{},
	}
}

func (m *MemoryStore) UpsertCommit(ctx context.Context, repoID uuid.UUID, c CommitInput) (models.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	key := repoID.String() + ":" + c.SHA
	existing, ok := m.commitsBySHA[key]
	commit := models.Commit{
		ID: existing.ID, RepositoryID: repoID, SHA: c.SHA, Message: c.Message, Author: c.Author,
		AuthoredAt: c.AuthoredAt, Branch: c.Branch, Additions: c.Additions, Deletions: c.Deletions,
		CreatedAt: existing.CreatedAt, UpdatedAt: now,
	}
	if !ok {
		commit.ID = uuid.New()
		commit.CreatedAt = now
	}
	m.commitsBySHA[key] = commit
	return commit, nil
}

func (m *MemoryStore) UpsertPullRequest(ctx context.Context, repoID uuid.UUID, p PullRequestInput) (models.PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	key := prKey(repoID, p.Number)
	existing, ok := m.prsByRepoNumber[key]
	pr := models.PullRequest{
		ID: existing.ID, RepositoryID: repoID, Number: p.Number, Title: p.Title, State: p.State,
		Author: p.Author, Labels: p.Labels, MergedAt: p.MergedAt, ClosedAt: p.ClosedAt,
		UpdatedAtSrc: p.UpdatedAtSrc, CreatedAt: existing.CreatedAt, UpdatedAt: now,
	}
	if !ok {
		pr.ID = uuid.New()
		pr.CreatedAt = now
	}
	m.prsByRepoNumber[key] = pr
	return pr, nil
}

func (m *MemoryStore) UpsertIssue(ctx context.Context, repoID uuid.UUID, i IssueInput) (models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	key := prKey(repoID, i.Number)
	existing, ok := m.issByRepoNumber[key]
	issue := models.Issue{
		ID: existing.ID, RepositoryID: repoID, Number: i.Number, Title: i.Title, State: i.State,
		Author: i.Author, Labels: i.Labels, ClosedAt: i.ClosedAt,
		UpdatedAtSrc: i.UpdatedAtSrc, CreatedAt: existing.CreatedAt, UpdatedAt: now,
	}
	if !ok {
		issue.ID = uuid.New()
		issue.CreatedAt = now
	}
	m.issByRepoNumber[key] = issue
	return issue, nil
}

func (m *MemoryStore) UpsertDocChange(ctx context.Context, repoID uuid.UUID, d DocChangeInput) (models.DocumentationChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	key := repoID.String() + ":" + d.CommitSHA + ":" + d.Path
	existing, ok := m.docsByKey[key]
	doc := models.DocumentationChange{
		ID: existing.ID, RepositoryID: repoID, CommitSHA: d.CommitSHA, Path: d.Path,
		ChangeType: d.ChangeType, OccurredAt: d.OccurredAt, CreatedAt: existing.CreatedAt,
	}
	if !ok {
		doc.ID = uuid.New()
		doc.CreatedAt = now
	}
	m.docsByKey[key] = doc
	return doc, nil
}

func (m *MemoryStore) InsertEventFact(ctx context.Context, fact models.EventFact) (bool, models.EventFact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.factsByRawEventID[fact.RawEventID]; ok {
		return false, existing, nil
	}
	m.factsByRawEventID[fact.RawEventID] = fact
	return true, fact, nil
}

func (m *MemoryStore) GetEventFactByRawEventID(ctx context.Context, rawEventID uuid.UUID) (models.EventFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fact, ok := m.factsByRawEventID[rawEventID]
	if !ok {
		return models.EventFact{}, ErrNotFound
	}
	return fact, nil
}

func (m *MemoryStore) ListByRepositoryWindow(ctx context.Context, repositoryID uuid.UUID, windowStart, windowEnd time.Time) ([]models.EventFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var facts []models.EventFact
	for _, f := range m.factsByRawEventID {
		if f.RepositoryID == nil || *f.RepositoryID != repositoryID {
			continue
		}
		if f.OccurredAt.Before(windowStart) || !f.OccurredAt.Before(windowEnd) {
			continue
		}
		facts = append(facts, f)
	}
	return facts, nil
}

func prKey(repoID uuid.UUID, number int) string {
	return repoID.String() + ":" + strconv.Itoa(number)
}
