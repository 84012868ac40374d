package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/models"
)

func TestLocalSink_WriteReport_WritesLatestAndDatedCopies(t *testing.T) {
	base := t.TempDir()
	s := NewLocalSink(base)
	meta := Metadata{Owner: "octostatus", Name: "engine", Date: "2026-01-08", ReportID: "r-1"}

	err := s.WriteReport(context.Background(), "# hello", meta)
	require.NoError(t, err)

	latest, err := os.ReadFile(filepath.Join(base, "octostatus", "engine", "latest.md"))
	require.NoError(t, err)
	require.Equal(t, "# hello", string(latest))

	dated, err := os.ReadFile(filepath.Join(base, "octostatus", "engine", "2026-01-08-r-1.md"))
	require.NoError(t, err)
	require.Equal(t, "# hello", string(dated))
}

func TestLocalSink_WriteReport_OverwritesLatestOnSecondCall(t *testing.T) {
	base := t.TempDir()
	s := NewLocalSink(base)
	meta := Metadata{Owner: "octostatus", Name: "engine", Date: "2026-01-08", ReportID: "r-1"}

	require.NoError(t, s.WriteReport(context.Background(), "first", meta))
	meta2 := Metadata{Owner: "octostatus", Name: "engine", Date: "2026-01-15", ReportID: "r-2"}
	require.NoError(t, s.WriteReport(context.Background(), "second", meta2))

	latest, err := os.ReadFile(filepath.Join(base, "octostatus", "engine", "latest.md"))
	require.NoError(t, err)
	require.Equal(t, "second", string(latest))

	_, err = os.Stat(filepath.Join(base, "octostatus", "engine", "2026-01-08-r-1.md"))
	require.NoError(t, err)
}

func TestRenderMarkdown_OmitsEmptySections(t *testing.T) {
	report := models.Report{
		ID:          uuid.New(),
		Status:      models.StatusOnTrack,
		HumanText:   "Things are fine.",
		Model:       "heuristic/v1",
		WindowStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Date(2026, 1, 8, 1, 0, 0, 0, time.UTC),
	}

	out := RenderMarkdown("octostatus", "engine", report, models.StatusSummary{})

	require.Contains(t, out, "octostatus/engine")
	require.Contains(t, out, "Things are fine.")
	require.NotContains(t, out, "## Highlights")
	require.NotContains(t, out, "## Risks")
	require.NotContains(t, out, "## Next steps")
}

func TestRenderMarkdown_IncludesNonEmptySections(t *testing.T) {
	report := models.Report{
		ID:          uuid.New(),
		Status:      models.StatusAtRisk,
		HumanText:   "Some risk.",
		Model:       "heuristic/v1",
		WindowStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Date(2026, 1, 8, 1, 0, 0, 0, time.UTC),
	}
	summary := models.StatusSummary{Highlights: []string{"shipped X"}, Risks: []string{"bug backlog growing"}}

	out := RenderMarkdown("octostatus", "engine", report, summary)

	require.Contains(t, out, "## Highlights")
	require.Contains(t, out, "shipped X")
	require.Contains(t, out, "## Risks")
	require.Contains(t, out, "bug backlog growing")
}
