// Package evidence implements the Evidence Bundle Builder (spec component
// E): a windowed, coverage-exclusive selection of EventFacts grouped by a
// work-type heuristic, plus recent report context.
package evidence

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/goldstore"
	"github.com/octostatus/estate-reporter/internal/models"
	"github.com/octostatus/estate-reporter/internal/projector"
)

// WorkType is the coarse heuristic bucket a fact is grouped into.
type WorkType string

const (
	WorkFeature  WorkType = "feature"
	WorkBug      WorkType = "bug"
	WorkRefactor WorkType = "refactor"
	WorkChore    WorkType = "chore"
)

// Bundle is the immutable evidence set handed to the Status Model.
type Bundle struct {
	RepositoryID  uuid.UUID
	WindowStart   time.Time
	WindowEnd     time.Time
	Facts         []models.EventFact
	Groups        map[WorkType][]models.EventFact
	PriorReports  []models.Report
}

// Builder constructs Bundles from the Silver and Gold stores.
type Builder struct {
	silver projector.Store
	gold   goldstore.Store
}

func New(silver projector.Store, gold goldstore.Store) *Builder {
	return &Builder{silver: silver, gold: gold}
}

// Build selects EventFacts in [windowStart, windowEnd) for repositoryID,
// excludes facts already covered by a repository-scoped report, groups by
// work type, and attaches up to two prior repository reports for context
// (spec §4.E). Re-building with identical inputs against unchanged Silver
// and Gold state yields a byte-identical grouping.
func (b *Builder) Build(ctx context.Context, repositoryID uuid.UUID, windowStart, windowEnd time.Time) (Bundle, error) {
	facts, err := b.silver.ListByRepositoryWindow(ctx, repositoryID, windowStart, windowEnd)
	if err != nil {
		return Bundle{}, err
	}

	covered, err := b.gold.CoveredEventFactIDs(ctx, repositoryID)
	if err != nil {
		return Bundle{}, err
	}

	uncovered := make([]models.EventFact, 0, len(facts))
	for _, f := range facts {
		if _, ok := covered[f.ID]; ok {
			continue
		}
		uncovered = append(uncovered, f)
	}
	sort.Slice(uncovered, func(i, j int) bool {
		if uncovered[i].OccurredAt.Equal(uncovered[j].OccurredAt) {
			return uncovered[i].ID.String() < uncovered[j].ID.String()
		}
		return uncovered[i].OccurredAt.Before(uncovered[j].OccurredAt)
	})

	groups := map[WorkType][]models.EventFact{}
	for _, f := range uncovered {
		wt := classify(f)
		groups[wt] = append(groups[wt], f)
	}

	priorReports, err := b.gold.RecentRepositoryReports(ctx, repositoryID, 2)
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{
		RepositoryID: repositoryID,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Facts:        uncovered,
		Groups:       groups,
		PriorReports: priorReports,
	}, nil
}

// classify derives a work-type bucket from labels and title prefixes found
// in the fact's normalised payload. Commits and doc changes, which carry no
// labels, default to chore.
func classify(f models.EventFact) WorkType {
	var payload struct {
		Title  string   `json:"title"`
		Labels []string `json:"labels"`
	}
	_ = json.Unmarshal(f.NormalisedPayload, &payload)

	for _, label := range payload.Labels {
		switch strings.ToLower(label) {
		case "bug", "bugfix", "defect":
			return WorkBug
		case "feature", "enhancement":
			return WorkFeature
		case "refactor", "tech-debt", "cleanup":
			return WorkRefactor
		case "chore", "maintenance":
			return WorkChore
		}
	}

	title := strings.ToLower(payload.Title)
	switch {
	case strings.HasPrefix(title, "fix"), strings.HasPrefix(title, "bug"):
		return WorkBug
	case strings.HasPrefix(title, "feat"):
		return WorkFeature
	case strings.HasPrefix(title, "refactor"):
		return WorkRefactor
	default:
		return WorkChore
	}
}
