// Package goldstore implements Gold-layer persistence: Report,
// ReportCoverage, and ReportReview, the output of the Reporting
// Orchestrator (spec component G).
package goldstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/models"
)

// ErrNotFound is returned when a report or review cannot be located.
var ErrNotFound = errors.New("gold entity not found")

// Store is the persistence contract for the Gold layer.
type Store interface {
	// LatestRepositoryReport returns the most recent repository-scoped
	// report for repositoryID, used for window planning.
	LatestRepositoryReport(ctx context.Context, repositoryID uuid.UUID) (models.Report, error)

	// RecentRepositoryReports returns up to limit repository-scoped reports
	// for repositoryID ordered by window_end desc.
	RecentRepositoryReports(ctx context.Context, repositoryID uuid.UUID, limit int) ([]models.Report, error)

	// SaveReport persists a Report and a ReportCoverage row for every fact
	// id supplied, as a single unit (spec §4.G step 4).
	SaveReport(ctx context.Context, report models.Report, coveredEventFactIDs []uuid.UUID) (models.Report, error)

	// CoveredEventFactIDs returns the set of event_fact_id values already
	// covered by a repository-scoped report for repositoryID, per the
	// coverage-exclusivity rule in spec §4.E.
	CoveredEventFactIDs(ctx context.Context, repositoryID uuid.UUID) (map[uuid.UUID]struct{}, error)

	// UpsertReview records a failed-validation run, keyed on
	// (repository_id, window_start, window_end).
	UpsertReview(ctx context.Context, review models.ReportReview) (models.ReportReview, error)
}

// windowKey is a convenience for implementations keying reviews.
func windowKey(repositoryID uuid.UUID, start, end time.Time) string {
	return repositoryID.String() + ":" + start.UTC().Format(time.RFC3339Nano) + ":" + end.UTC().Format(time.RFC3339Nano)
}
