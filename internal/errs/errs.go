// Package errs defines the error taxonomy from spec §7 as a single typed
// error wrapping any kind, so callers can branch on Kind with errors.As
// while keeping the underlying cause via Unwrap.
package errs

import "fmt"

// Kind names one of the error taxonomy entries from spec §7. Kinds, not
// Go types, are the unit of classification throughout the pipeline.
type Kind string

const (
	// Input errors.
	InvalidTimestamp       Kind = "INVALID_TIMESTAMP"
	UnsupportedPayloadType Kind = "UNSUPPORTED_PAYLOAD_TYPE"
	UnknownRepository      Kind = "UNKNOWN_REPOSITORY"

	// Transient errors.
	Remote5xx            Kind = "REMOTE_5XX"
	DatabaseConnectivity Kind = "DATABASE_CONNECTIVITY"
	Timeout              Kind = "TIMEOUT"

	// Permanent remote errors.
	Remote4xx   Kind = "REMOTE_4XX"
	SchemaDrift Kind = "SCHEMA_DRIFT"

	// Data-integrity errors.
	Drift         Kind = "DRIFT"
	DataIntegrity Kind = "DATA_INTEGRITY"

	// Configuration errors.
	MissingConfig Kind = "MISSING_CONFIG"

	// Reporting errors.
	EvidenceEmpty    Kind = "EVIDENCE_EMPTY"
	ValidationFailed Kind = "VALIDATION_FAILED"

	// Catch-all.
	Unknown Kind = "UNKNOWN"
)

// Category buckets a Kind into the propagation policy from spec §7.
type Category string

const (
	CategoryInput       Category = "input"
	CategoryTransient   Category = "transient"
	CategoryPermanent   Category = "permanent"
	CategoryIntegrity   Category = "integrity"
	CategoryConfig      Category = "config"
	CategoryReporting   Category = "reporting"
	CategoryUnknown     Category = "unknown"
)

var categories = map[Kind]Category{
	InvalidTimestamp:       CategoryInput,
	UnsupportedPayloadType: CategoryInput,
	UnknownRepository:      CategoryInput,
	Remote5xx:              CategoryTransient,
	DatabaseConnectivity:   CategoryTransient,
	Timeout:                CategoryTransient,
	Remote4xx:              CategoryPermanent,
	SchemaDrift:            CategoryPermanent,
	Drift:                  CategoryIntegrity,
	DataIntegrity:          CategoryIntegrity,
	MissingConfig:          CategoryConfig,
	EvidenceEmpty:          CategoryReporting,
	ValidationFailed:       CategoryReporting,
}

// CategoryOf returns the propagation category for a Kind, CategoryUnknown
// for anything not in the table.
func CategoryOf(k Kind) Category {
	if c, ok := categories[k]; ok {
		return c
	}
	return CategoryUnknown
}

// Retryable reports whether errors of this kind should be retried locally
// per spec §7's propagation policy.
func (k Kind) Retryable() bool { return CategoryOf(k) == CategoryTransient }

// Error wraps a Kind with context and an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error carrying cause as the underlying error.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts an *Error from err, if present in its chain.
func As(err error) (*Error, bool) {
	var target *Error
	if err == nil {
		return nil, false
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	type unwrapper interface{ Unwrap() error }
	for u, ok := err.(unwrapper); ok; u, ok = err.(unwrapper) {
		err = u.Unwrap()
		if e, ok := err.(*Error); ok {
			target = e
			return target, true
		}
	}
	return nil, false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
