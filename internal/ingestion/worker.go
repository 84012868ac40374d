package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/octostatus/estate-reporter/internal/bronzestore"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/eventbus"
	"github.com/octostatus/estate-reporter/internal/models"
	"github.com/octostatus/estate-reporter/internal/telemetry"
)

// RunState is the per-run state machine from spec §4.D.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// RunResult summarises one ingest_repository invocation.
type RunResult struct {
	State     RunState
	Category  errs.Category
	Appended  int
	Truncated []models.StreamKind
}

// Worker implements component D: ingest_repository walks each stream kind
// in the fixed order, paginating the remote source and appending envelopes
// to Bronze, advancing watermarks only after a successful append.
type Worker struct {
	bronze     bronzestore.Store
	offsets    OffsetStore
	source     RemoteSource
	publisher  eventbus.Publisher
	clock      clock.Clock
	logger     zerolog.Logger
	lookback   time.Duration
	maxPerRun  int
	metrics    *telemetry.Metrics
}

func NewWorker(bronze bronzestore.Store, offsets OffsetStore, source RemoteSource, publisher eventbus.Publisher, clk clock.Clock, logger zerolog.Logger, lookback time.Duration, maxEventsPerRun int) *Worker {
	return &Worker{
		bronze: bronze, offsets: offsets, source: source, publisher: publisher,
		clock: clk, logger: logger, lookback: lookback, maxPerRun: maxEventsPerRun,
	}
}

// WithMetrics attaches a Metrics sink; ingestion runs are then counted by
// outcome category. Optional: a Worker built without it simply skips metrics.
func (w *Worker) WithMetrics(m *telemetry.Metrics) *Worker {
	w.metrics = m
	return w
}

// IngestRepository runs the full ordered stream walk for one repository.
func (w *Worker) IngestRepository(ctx context.Context, repo models.Repository) RunResult {
	result := RunResult{State: RunRunning}

	for _, stream := range models.StreamOrder {
		appended, truncated, err := w.ingestStream(ctx, repo, stream)
		result.Appended += appended
		if truncated {
			result.Truncated = append(result.Truncated, stream)
		}
		if err != nil {
			result.State = RunFailed
			if e, ok := errs.As(err); ok {
				result.Category = errs.CategoryOf(e.Kind)
			} else {
				result.Category = errs.CategoryUnknown
			}
			w.logger.Error().Err(err).
				Str("owner", repo.Owner).Str("repo", repo.Name).Str("stream", string(stream)).
				Msg("ingestion stream failed")
			w.recordRun(result.State)
			return result
		}
	}

	result.State = RunSucceeded
	w.recordRun(result.State)
	return result
}

func (w *Worker) recordRun(state RunState) {
	if w.metrics == nil {
		return
	}
	w.metrics.IngestionRuns.WithLabelValues(string(state)).Inc()
}

func (w *Worker) ingestStream(ctx context.Context, repo models.Repository, stream models.StreamKind) (appended int, truncated bool, err error) {
	offset, err := w.offsets.Get(ctx, repo.ID, stream)
	if err == ErrNotFound {
		offset = models.IngestionOffset{
			RepositoryID: repo.ID,
			StreamKind:   stream,
			Watermark:    w.clock.Now().Add(-w.lookback),
		}
	} else if err != nil {
		return 0, false, err
	}

	remaining := w.maxPerRun
	maxObserved := offset.Watermark
	cursor := offset.Cursor

	for remaining > 0 {
		page, err := w.source.FetchPage(ctx, repo, stream, offset.Watermark, cursor, remaining)
		if err != nil {
			return appended, false, err
		}

		for _, env := range page.Envelopes {
			if _, err := w.bronze.Ingest(ctx, env); err != nil {
				return appended, false, err
			}
			appended++
			remaining--
			if env.OccurredAt.After(maxObserved) {
				maxObserved = env.OccurredAt
			}
		}

		if len(page.Envelopes) == 0 {
			cursor = nil
			break
		}

		if !page.HasMore {
			cursor = nil
			break
		}

		if remaining <= 0 {
			// max_events_per_run reached with pages remaining: keep the
			// cursor so the next run continues, and signal backpressure.
			cursor = page.NextCursor
			truncated = true
			break
		}
		cursor = page.NextCursor
	}

	newOffset := models.IngestionOffset{
		RepositoryID: repo.ID,
		StreamKind:   stream,
		Watermark:    maxObserved,
		Cursor:       cursor,
		UpdatedAt:    w.clock.Now(),
	}
	if err := w.offsets.Upsert(ctx, newOffset); err != nil {
		return appended, false, err
	}

	if truncated {
		_ = w.publisher.Publish(ctx, eventbus.Event{
			Topic: "stream.truncated",
			Key:   repo.FullName(),
			Payload: map[string]interface{}{
				"owner": repo.Owner, "repo": repo.Name, "stream": string(stream),
				"cursor": cursor,
			},
		})
	}

	return appended, truncated, nil
}
