// Package reporting implements the Reporting Orchestrator (spec component
// G): window planning, evidence assembly, status-model invocation,
// validation with bounded retry, and Gold persistence.
package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/eventbus"
	"github.com/octostatus/estate-reporter/internal/goldstore"
	"github.com/octostatus/estate-reporter/internal/lock"
	"github.com/octostatus/estate-reporter/internal/models"
	"github.com/octostatus/estate-reporter/internal/sink"
	"github.com/octostatus/estate-reporter/internal/statusmodel"
	"github.com/octostatus/estate-reporter/internal/telemetry"
)

// Outcome distinguishes the three terminal states run_for_repository can
// reach (spec §4.G and §4.J's 200/204/422 mapping).
type Outcome string

const (
	OutcomeGenerated     Outcome = "generated"
	OutcomeEvidenceEmpty Outcome = "evidence_empty"
	OutcomeValidationFailed Outcome = "validation_failed"
)

// Result is what run_for_repository returns for every outcome.
type Result struct {
	Outcome  Outcome
	Report   *models.Report
	ReviewID *uuid.UUID
	Issues   []models.ReviewIssue
}

// Orchestrator implements run_for_repository and compute_next_window.
type Orchestrator struct {
	evidenceBuilder *evidence.Builder
	gold            goldstore.Store
	model           statusmodel.StatusModel
	sink            sink.ReportSink
	locker          lock.Locker
	publisher       eventbus.Publisher
	clock           clock.Clock
	logger          zerolog.Logger
	windowDefault   time.Duration
	maxAttempts     int
	metrics         *telemetry.Metrics
}

// WithMetrics attaches a Metrics sink; generated reports are then counted
// by scope and status. Optional: an Orchestrator built without it skips metrics.
func (o *Orchestrator) WithMetrics(m *telemetry.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

func New(
	evidenceBuilder *evidence.Builder,
	gold goldstore.Store,
	model statusmodel.StatusModel,
	reportSink sink.ReportSink,
	locker lock.Locker,
	publisher eventbus.Publisher,
	clk clock.Clock,
	logger zerolog.Logger,
	windowDefault time.Duration,
	maxAttempts int,
) *Orchestrator {
	return &Orchestrator{
		evidenceBuilder: evidenceBuilder, gold: gold, model: model, sink: reportSink,
		locker: locker, publisher: publisher, clock: clk, logger: logger,
		windowDefault: windowDefault, maxAttempts: maxAttempts,
	}
}

// ComputeNextWindow implements window planning: continuous coverage from
// the previous repository report's window_end, or now-window_days if none
// exists yet (spec §4.G).
func (o *Orchestrator) ComputeNextWindow(ctx context.Context, repositoryID uuid.UUID) (start, end time.Time, err error) {
	now := o.clock.Now()
	end = now

	prior, err := o.gold.LatestRepositoryReport(ctx, repositoryID)
	if err == goldstore.ErrNotFound {
		return now.Add(-o.windowDefault), end, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return prior.WindowEnd, end, nil
}

// RunForRepository executes the single-transaction-per-outcome flow in
// spec §4.G: evidence → model → validate(+retry) → persist or review.
func (o *Orchestrator) RunForRepository(ctx context.Context, repo models.Repository) (Result, error) {
	unlock, err := o.locker.TryLock(ctx, "report:"+repo.ID.String())
	if err != nil {
		return Result{}, fmt.Errorf("acquire reporting lock for %s: %w", repo.FullName(), err)
	}
	defer unlock()

	windowStart, windowEnd, err := o.ComputeNextWindow(ctx, repo.ID)
	if err != nil {
		return Result{}, err
	}

	bundle, err := o.evidenceBuilder.Build(ctx, repo.ID, windowStart, windowEnd)
	if err != nil {
		return Result{}, err
	}
	if len(bundle.Facts) == 0 {
		return Result{Outcome: OutcomeEvidenceEmpty}, nil
	}

	var summary models.StatusSummary
	var issues []models.ReviewIssue
	var latencyMs int64
	attempts := 0

	for attempts < o.maxAttempts {
		attempts++
		start := o.clock.Now()
		summary, err = o.model.SummariseRepository(ctx, bundle)
		latencyMs = o.clock.Now().Sub(start).Milliseconds()
		if err != nil {
			return Result{}, err
		}

		issues = validate(summary, bundle)
		if len(issues) == 0 {
			break
		}
		o.logger.Warn().
			Str("repository", repo.FullName()).Int("attempt", attempts).
			Interface("issues", issues).Msg("status summary failed validation")
	}

	if len(issues) > 0 {
		review, err := o.gold.UpsertReview(ctx, models.ReportReview{
			RepositoryID: repo.ID,
			WindowStart:  windowStart,
			WindowEnd:    windowEnd,
			Attempts:     attempts,
			Issues:       issues,
			State:        models.ReviewPending,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeValidationFailed, ReviewID: &review.ID, Issues: issues}, errs.New(errs.ValidationFailed, "status summary failed validation after retries")
	}

	machineSummary, err := json.Marshal(summary)
	if err != nil {
		return Result{}, fmt.Errorf("marshal machine summary: %w", err)
	}

	factIDs := make([]uuid.UUID, 0, len(bundle.Facts))
	for _, f := range bundle.Facts {
		factIDs = append(factIDs, f.ID)
	}

	report := models.Report{
		ID:             uuid.New(),
		Scope:          models.ScopeRepository,
		RepositoryID:   &repo.ID,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		Model:          modelName(o.model),
		Status:         summary.Status,
		HumanText:      summary.SummaryText,
		MachineSummary: machineSummary,
		ModelLatencyMs: &latencyMs,
		GeneratedAt:    o.clock.Now(),
	}
	if summary.Usage != nil {
		report.PromptTokens = &summary.Usage.PromptTokens
		report.CompletionTokens = &summary.Usage.CompletionTokens
		report.TotalTokens = &summary.Usage.TotalTokens
	}

	saved, err := o.gold.SaveReport(ctx, report, factIDs)
	if err != nil {
		return Result{}, err
	}
	if o.metrics != nil {
		o.metrics.ReportsGenerated.WithLabelValues(string(saved.Scope), string(saved.Status)).Inc()
	}

	if o.sink != nil {
		markdown := renderMarkdown(repo, saved, summary)
		if err := o.sink.WriteReport(ctx, markdown, sink.Metadata{
			Owner: repo.Owner, Name: repo.Name,
			Date:     saved.GeneratedAt.Format("2006-01-02"),
			ReportID: saved.ID.String(),
		}); err != nil {
			o.logger.Error().Err(err).Str("repository", repo.FullName()).Msg("failed to write report sink artefact")
		}
	}

	_ = o.publisher.Publish(ctx, eventbus.Event{
		Topic: "report.generated",
		Key:   repo.FullName(),
		Payload: map[string]interface{}{
			"report_id": saved.ID.String(), "owner": repo.Owner, "repo": repo.Name, "status": string(saved.Status),
		},
	})

	return Result{Outcome: OutcomeGenerated, Report: &saved}, nil
}

type named interface{ Name() string }

func modelName(m statusmodel.StatusModel) string {
	if n, ok := m.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", m)
}
