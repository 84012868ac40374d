package projector

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/octostatus/estate-reporter/internal/bronzestore"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// Projector implements component B: process_pending drains unprocessed
// Bronze rows in (occurred_at, id) order and projects each into Silver.
type Projector struct {
	bronze    bronzestore.Store
	silver    Store
	repos     RepositoryUpserter
	clock     clock.Clock
	logger    zerolog.Logger
}

func New(bronze bronzestore.Store, silver Store, repos RepositoryUpserter, clk clock.Clock, logger zerolog.Logger) *Projector {
	return &Projector{bronze: bronze, silver: silver, repos: repos, clock: clk, logger: logger}
}

// Result summarises one process_pending invocation.
type Result struct {
	Processed int
	Drifted   int
}

// ProcessPending consumes up to batchSize unprocessed raw events, in the
// deterministic order bronzestore.ListUnprocessed already guarantees, and
// projects each in turn (spec §4.B). A failure on one event does not abort
// the batch; it is logged and the loop continues with the next event.
func (p *Projector) ProcessPending(ctx context.Context, batchSize int) (Result, error) {
	events, err := p.bronze.ListUnprocessed(ctx, batchSize)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, raw := range events {
		drifted, err := p.projectOne(ctx, raw)
		if err != nil {
			p.logger.Error().Err(err).Str("raw_event_id", raw.ID.String()).Msg("projection failed")
			continue
		}
		result.Processed++
		if drifted {
			result.Drifted++
		}
	}
	return result, nil
}

// projectOne runs the four-step algorithm in spec §4.B for a single raw
// event and reports whether it was marked processed_failed/DRIFT.
func (p *Projector) projectOne(ctx context.Context, raw models.RawEvent) (bool, error) {
	decoded, key, err := decodePayload(raw.EventType, raw.Payload)
	if err != nil {
		return false, err
	}

	repo, err := p.repos.UpsertAdHoc(ctx, key.Owner, key.Repo, key.Branch)
	if err != nil {
		return false, err
	}

	normalised, _, err := normalisedProjection(raw.EventType, raw.Payload)
	if err != nil {
		return false, err
	}

	// Drift is checked against any fact already recorded for this raw event
	// before the entity upsert, so a drifted event leaves Silver untouched.
	prior, err := p.silver.GetEventFactByRawEventID(ctx, raw.ID)
	if err != nil && err != ErrNotFound {
		return false, err
	}
	if err == nil && !bytes.Equal(prior.NormalisedPayload, normalised) {
		if err := p.bronze.MarkDrift(ctx, raw.ID, string(errs.Drift)); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := p.upsertEntity(ctx, repo.ID, raw.EventType, decoded); err != nil {
		return false, err
	}

	fact := models.EventFact{
		ID:                uuid.New(),
		RawEventID:        raw.ID,
		EventType:         raw.EventType,
		RepoExternalID:    raw.RepoExternalID,
		RepositoryID:      &repo.ID,
		OccurredAt:        raw.OccurredAt,
		NormalisedPayload: normalised,
	}

	created, existing, err := p.silver.InsertEventFact(ctx, fact)
	if err != nil {
		return false, err
	}
	if !created {
		// A concurrent worker already inserted the fact for this raw event.
		// Drift detection: the re-derived projection must match byte for
		// byte, or this raw event is quarantined rather than silently
		// accepted (spec §4.B Drift detection).
		if !bytes.Equal(existing.NormalisedPayload, normalised) {
			if err := p.bronze.MarkDrift(ctx, raw.ID, string(errs.Drift)); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	if err := p.bronze.MarkProcessed(ctx, raw.ID); err != nil {
		return false, err
	}
	return false, nil
}

func (p *Projector) upsertEntity(ctx context.Context, repoID uuid.UUID, eventType models.EventType, decoded interface{}) error {
	switch v := decoded.(type) {
	case commitPayload:
		input, err := toCommitInput(v)
		if err != nil {
			return err
		}
		_, err = p.silver.UpsertCommit(ctx, repoID, input)
		return err
	case pullRequestPayload:
		input, err := toPullRequestInput(v)
		if err != nil {
			return err
		}
		_, err = p.silver.UpsertPullRequest(ctx, repoID, input)
		return err
	case issuePayload:
		input, err := toIssueInput(v)
		if err != nil {
			return err
		}
		_, err = p.silver.UpsertIssue(ctx, repoID, input)
		return err
	case docChangePayload:
		input, err := toDocChangeInput(v)
		if err != nil {
			return err
		}
		_, err = p.silver.UpsertDocChange(ctx, repoID, input)
		return err
	default:
		return errs.Newf(errs.UnsupportedPayloadType, "unrecognised decoded payload type %T", decoded)
	}
}
