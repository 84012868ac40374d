// Package telemetry wires structured logging and metrics, the ambient
// observability stack every component receives by constructor injection
// rather than through a global.
package telemetry

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog.Logger writing leveled JSON to stdout, tagged
// with the component name so multi-binary deployments can be told apart in
// aggregated log storage.
func NewLogger(component string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
