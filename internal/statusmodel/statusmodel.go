// Package statusmodel defines the pluggable summarisation interface (spec
// component F) and its two backends: a deterministic heuristic used for
// tests and local runs, and a remote chat-completion backend.
package statusmodel

import (
	"context"

	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/models"
)

// StatusModel summarises an evidence bundle into a StatusSummary.
// Project- and estate-scope summarisation share the same signature; the
// distinction is the scope of the bundle handed in, not the interface.
type StatusModel interface {
	SummariseRepository(ctx context.Context, bundle evidence.Bundle) (models.StatusSummary, error)
	SummariseProject(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error)
	SummariseEstate(ctx context.Context, bundles []evidence.Bundle) (models.StatusSummary, error)
}
