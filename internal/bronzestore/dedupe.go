package bronzestore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/canonical"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/models"
)

// prepareRawEvent validates an envelope, deep-copies its payload, and
// computes the SHA-256 dedupe key over a canonical encoding of
// (source_system, event_type, source_event_id, repo_external_id,
// occurred_at, normalised_payload), per spec §4.A. It does not touch
// storage; callers insert the result idempotently keyed on DedupeKey.
func prepareRawEvent(now time.Time, env models.RawEventEnvelope) (models.RawEvent, error) {
	if env.OccurredAt.IsZero() {
		return models.RawEvent{}, errs.New(errs.InvalidTimestamp, "occurred_at is required")
	}

	payloadCopy := canonical.DeepCopy(env.Payload)
	normalisedPayload, err := canonical.Normalise(payloadCopy)
	if err != nil {
		return models.RawEvent{}, errs.Wrap(errs.UnsupportedPayloadType, err, "payload contains an unsupported value kind")
	}

	keyMaterial := map[string]interface{}{
		"source_system":    env.SourceSystem,
		"event_type":       string(env.EventType),
		"source_event_id":  derefOrNil(env.SourceEventID),
		"repo_external_id": derefOrNil(env.RepoExternalID),
		"occurred_at":      env.OccurredAt.UTC().Format(time.RFC3339Nano),
		"payload":          normalisedPayload,
	}
	canon, err := canonical.Marshal(keyMaterial)
	if err != nil {
		return models.RawEvent{}, errs.Wrap(errs.UnsupportedPayloadType, err, "failed to canonicalise dedupe key material")
	}
	sum := sha256.Sum256(canon)

	payloadJSON, err := json.Marshal(payloadCopy)
	if err != nil {
		return models.RawEvent{}, errs.Wrap(errs.UnsupportedPayloadType, err, "failed to marshal payload")
	}

	return models.RawEvent{
		ID:             uuid.New(),
		SourceSystem:   env.SourceSystem,
		EventType:      env.EventType,
		SourceEventID:  env.SourceEventID,
		RepoExternalID: env.RepoExternalID,
		OccurredAt:     env.OccurredAt.UTC(),
		IngestedAt:     now,
		Payload:        payloadJSON,
		DedupeKey:      hex.EncodeToString(sum[:]),
		State:          models.ProcessingPending,
	}, nil
}

func derefOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
