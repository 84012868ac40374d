package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/octostatus/estate-reporter/internal/errs"
)

// rawEnvelopeWire mirrors RawEventEnvelope but keeps occurred_at as a string
// so UnmarshalJSON can classify a missing-offset timestamp as
// errs.InvalidTimestamp instead of a generic decode error.
type rawEnvelopeWire struct {
	SourceSystem   string          `json:"source_system"`
	EventType      EventType       `json:"event_type"`
	SourceEventID  *string         `json:"source_event_id,omitempty"`
	RepoExternalID *string         `json:"repo_external_id,omitempty"`
	OccurredAt     string          `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload"`
}

// UnmarshalJSON requires occurred_at to be an RFC3339 timestamp carrying an
// explicit UTC offset (spec §4.A: "naive occurred_at" is rejected).
func (e *RawEventEnvelope) UnmarshalJSON(data []byte) error {
	var wire rawEnvelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.OccurredAt == "" {
		return errs.New(errs.InvalidTimestamp, "occurred_at is required")
	}
	t, err := time.Parse(time.RFC3339Nano, wire.OccurredAt)
	if err != nil {
		return errs.Wrap(errs.InvalidTimestamp, err, "occurred_at must be an RFC3339 timestamp with an explicit offset")
	}

	var payload interface{}
	if len(wire.Payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(wire.Payload))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return errs.Wrap(errs.UnsupportedPayloadType, err, "payload is not valid JSON")
		}
	}

	e.SourceSystem = wire.SourceSystem
	e.EventType = wire.EventType
	e.SourceEventID = wire.SourceEventID
	e.RepoExternalID = wire.RepoExternalID
	e.OccurredAt = t
	e.Payload = payload
	return nil
}

// MarshalJSON round-trips the same wire shape for symmetry in tests and
// logs; payload is re-encoded as-is.
func (e RawEventEnvelope) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	wire := rawEnvelopeWire{
		SourceSystem:   e.SourceSystem,
		EventType:      e.EventType,
		SourceEventID:  e.SourceEventID,
		RepoExternalID: e.RepoExternalID,
		OccurredAt:     e.OccurredAt.UTC().Format(time.RFC3339Nano),
		Payload:        payload,
	}
	return json.Marshal(wire)
}
