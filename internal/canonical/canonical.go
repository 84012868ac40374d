// Package canonical produces deterministic byte encodings of arbitrary
// JSON-like payloads, used by the Bronze store to compute stable dedupe
// keys and by the Entity Projector to compare normalised projections.
//
// Adapted from the teacher's kernel/internal/canonical package: map keys
// are always sorted, array order is preserved, and datetimes are recursively
// normalised to UTC ISO-8601 before encoding (spec §4.A).
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnsupportedPayloadType is returned when a payload contains a value kind
// that cannot be canonicalised deterministically.
var ErrUnsupportedPayloadType = errors.New("UNSUPPORTED_PAYLOAD_TYPE")

// Normalise walks v recursively, converting any time.Time it finds to a UTC
// RFC3339Nano string and verifying every other value is a JSON-safe kind.
// The result is safe to pass to Marshal or to json.Marshal directly.
func Normalise(v interface{}) (interface{}, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return vv, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return vv, nil
	case time.Time:
		return vv.UTC().Format(time.RFC3339Nano), nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			nv, err := Normalise(val)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, val := range vv {
			nv, err := Normalise(val)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayloadType, v)
	}
}

// Marshal returns deterministic JSON bytes for an already-normalised value:
// object keys sorted lexicographically, array order preserved.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NormaliseAndMarshal is the composition callers most often want: normalise
// datetimes and reject unsupported kinds, then encode deterministically.
func NormaliseAndMarshal(v interface{}) ([]byte, error) {
	n, err := Normalise(v)
	if err != nil {
		return nil, err
	}
	return Marshal(n)
}

func encode(buf *bytes.Buffer, v interface{}) error {
	switch vv := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if vv {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(vv.String())
	case string:
		b, err := json.Marshal(vv)
		if err != nil {
			return err
		}
		buf.Write(b)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range vv {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encode(buf, vv[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		// Numbers that arrive as int/float kinds rather than json.Number.
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Errorf("%w: %T", ErrUnsupportedPayloadType, v)
		}
		buf.Write(b)
	}
	return nil
}

// DeepCopy returns a structurally independent copy of a normalised payload
// tree, used by the Bronze store to prevent callers from mutating persisted
// payloads (spec §4.A, §9).
func DeepCopy(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[k] = DeepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, val := range vv {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return vv
	}
}
