package projector

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/models"
)

// ErrNotFound is returned when a Silver entity cannot be located.
var ErrNotFound = errors.New("silver entity not found")

// RepositoryUpserter is the slice of registry.Store the projector depends
// on for step 1 of the per-event algorithm (spec §4.B): upserting the
// owning repository by (owner, name) before projecting the entity itself.
type RepositoryUpserter interface {
	UpsertAdHoc(ctx context.Context, owner, name, branch string) (models.Repository, error)
}

// Store is the Silver persistence contract: natural-key upserts for the
// canonical entities plus the EventFact staging table.
type Store interface {
	UpsertCommit(ctx context.Context, repoID uuid.UUID, c CommitInput) (models.Commit, error)
	UpsertPullRequest(ctx context.Context, repoID uuid.UUID, p PullRequestInput) (models.PullRequest, error)
	UpsertIssue(ctx context.Context, repoID uuid.UUID, i IssueInput) (models.Issue, error)
	UpsertDocChange(ctx context.Context, repoID uuid.UUID, d DocChangeInput) (models.DocumentationChange, error)

	// InsertEventFact inserts a new fact keyed on raw_event_id. If a fact
	// already exists for that raw event it is returned unchanged alongside
	// created=false so the caller can run drift detection (spec §4.B step 3).
	InsertEventFact(ctx context.Context, fact models.EventFact) (created bool, existing models.EventFact, err error)

	GetEventFactByRawEventID(ctx context.Context, rawEventID uuid.UUID) (models.EventFact, error)

	ListByRepositoryWindow(ctx context.Context, repositoryID uuid.UUID, windowStart, windowEnd time.Time) ([]models.EventFact, error)
}

// CommitInput is the natural-key-bearing shape the projector passes to the
// Store; RepositoryID is supplied separately once the owning Repository has
// been resolved.
type CommitInput struct {
	SHA        string
	Message    string
	Author     string
	AuthoredAt time.Time
	Branch     string
	Additions  int
	Deletions  int
}

type PullRequestInput struct {
	Number       int
	Title        string
	State        string
	Author       string
	Labels       []string
	MergedAt     *time.Time
	ClosedAt     *time.Time
	UpdatedAtSrc time.Time
}

type IssueInput struct {
	Number       int
	Title        string
	State        string
	Author       string
	Labels       []string
	ClosedAt     *time.Time
	UpdatedAtSrc time.Time
}

type DocChangeInput struct {
	CommitSHA  string
	Path       string
	ChangeType string
	OccurredAt time.Time
}
