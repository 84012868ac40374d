package sink

import "context"

// Metadata describes the artefact being written, used to derive both the
// overwritten latest.md path and the immutable dated path (spec §4.H).
type Metadata struct {
	Owner    string
	Name     string
	Date     string // YYYY-MM-DD
	ReportID string
}

// ReportSink writes a rendered report to two locations: an overwritten
// "latest" artefact and an immutable dated one.
type ReportSink interface {
	WriteReport(ctx context.Context, markdown string, meta Metadata) error
}
