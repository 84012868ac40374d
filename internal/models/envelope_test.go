package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/errs"
)

func TestRawEventEnvelope_UnmarshalJSON_RejectsMissingOccurredAt(t *testing.T) {
	var env RawEventEnvelope
	err := json.Unmarshal([]byte(`{"source_system":"github","event_type":"commit"}`), &env)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidTimestamp, e.Kind)
}

func TestRawEventEnvelope_UnmarshalJSON_RejectsNaiveTimestamp(t *testing.T) {
	var env RawEventEnvelope
	err := json.Unmarshal([]byte(`{"source_system":"github","event_type":"commit","occurred_at":"2026-01-05T00:00:00"}`), &env)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidTimestamp, e.Kind)
}

func TestRawEventEnvelope_UnmarshalJSON_AcceptsOffsetTimestampAndPayload(t *testing.T) {
	var env RawEventEnvelope
	raw := `{"source_system":"github","event_type":"commit","occurred_at":"2026-01-05T12:00:00Z","payload":{"sha":"abc123"}}`
	err := json.Unmarshal([]byte(raw), &env)
	require.NoError(t, err)
	require.Equal(t, "github", env.SourceSystem)
	require.Equal(t, EventTypeCommit, env.EventType)
	payload, ok := env.Payload.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "abc123", payload["sha"])
}

func TestRawEventEnvelope_UnmarshalJSON_RejectsInvalidPayloadJSON(t *testing.T) {
	var env RawEventEnvelope
	raw := `{"source_system":"github","event_type":"commit","occurred_at":"2026-01-05T12:00:00Z","payload":"not-json-object"`
	err := json.Unmarshal([]byte(raw), &env)
	require.Error(t, err)
}

func TestRawEventEnvelope_MarshalJSON_RoundTripsOffsetTimestamp(t *testing.T) {
	var env RawEventEnvelope
	raw := `{"source_system":"github","event_type":"commit","occurred_at":"2026-01-05T12:00:00Z","payload":{"sha":"abc123"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	out, err := json.Marshal(env)
	require.NoError(t, err)

	var roundTripped RawEventEnvelope
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	require.True(t, env.OccurredAt.Equal(roundTripped.OccurredAt))
}
