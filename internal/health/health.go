// Package health implements the Health / Lag Service (spec component I):
// ingestion lag and stall detection computed over IngestionOffset rows.
package health

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/ingestion"
	"github.com/octostatus/estate-reporter/internal/telemetry"
)

// RepositoryLag is the per-repository lag snapshot from spec §4.I.
type RepositoryLag struct {
	RepositoryID                  uuid.UUID
	TimeSinceLastIngestionSeconds float64
	OldestWatermarkAgeSeconds     float64
	HasPendingCursors             bool
	IsStalled                     bool
}

// Service computes lag from an ingestion.OffsetStore.
type Service struct {
	offsets          ingestion.OffsetStore
	clock            clock.Clock
	stalledThreshold time.Duration
}

func New(offsets ingestion.OffsetStore, clk clock.Clock, stalledThreshold time.Duration) *Service {
	return &Service{offsets: offsets, clock: clk, stalledThreshold: stalledThreshold}
}

// LagForAll groups offsets by repository and computes lag per spec §4.I:
// time_since_last_ingestion uses the max watermark across streams,
// oldest_watermark_age uses the min, is_stalled fires when
// time_since_last_ingestion exceeds the threshold. A repository with no
// IngestionOffset rows does not appear in the result.
func (s *Service) LagForAll(ctx context.Context) ([]RepositoryLag, error) {
	offsets, err := s.offsets.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byRepo := map[uuid.UUID][]time.Time{}
	pending := map[uuid.UUID]bool{}
	for _, o := range offsets {
		byRepo[o.RepositoryID] = append(byRepo[o.RepositoryID], o.Watermark)
		if o.Cursor != nil {
			pending[o.RepositoryID] = true
		}
	}

	now := s.clock.Now()
	lags := make([]RepositoryLag, 0, len(byRepo))
	for repoID, watermarks := range byRepo {
		maxWM, minWM := watermarks[0], watermarks[0]
		for _, wm := range watermarks[1:] {
			if wm.After(maxWM) {
				maxWM = wm
			}
			if wm.Before(minWM) {
				minWM = wm
			}
		}
		sinceLast := now.Sub(maxWM).Seconds()
		oldestAge := now.Sub(minWM).Seconds()
		lags = append(lags, RepositoryLag{
			RepositoryID:                   repoID,
			TimeSinceLastIngestionSeconds:  sinceLast,
			OldestWatermarkAgeSeconds:      oldestAge,
			HasPendingCursors:              pending[repoID],
			IsStalled:                      sinceLast > s.stalledThreshold.Seconds(),
		})
	}
	return lags, nil
}

// LagForRepositories computes lag for exactly repoIDs, treating a
// repository absent from IngestionOffset entirely as never ingested and
// therefore stalled, per spec §4.I.
func (s *Service) LagForRepositories(ctx context.Context, repoIDs []uuid.UUID) ([]RepositoryLag, error) {
	all, err := s.LagForAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]RepositoryLag, len(all))
	for _, l := range all {
		byID[l.RepositoryID] = l
	}

	result := make([]RepositoryLag, 0, len(repoIDs))
	for _, id := range repoIDs {
		if l, ok := byID[id]; ok {
			result = append(result, l)
			continue
		}
		result = append(result, RepositoryLag{RepositoryID: id, IsStalled: true})
	}
	return result, nil
}

// PublishMetrics recomputes lag for every repository and sets the
// corresponding gauges, keyed by repository id. Intended to be called on a
// periodic sweep alongside StalledRepositories.
func (s *Service) PublishMetrics(ctx context.Context, m *telemetry.Metrics) error {
	lags, err := s.LagForAll(ctx)
	if err != nil {
		return err
	}
	for _, l := range lags {
		id := l.RepositoryID.String()
		m.IngestionLagSeconds.WithLabelValues(id).Set(l.TimeSinceLastIngestionSeconds)
		m.OldestWatermarkAgeSeconds.WithLabelValues(id).Set(l.OldestWatermarkAgeSeconds)
	}
	return nil
}

// StalledRepositories returns the subset of LagForAll whose is_stalled is true.
func (s *Service) StalledRepositories(ctx context.Context) ([]RepositoryLag, error) {
	all, err := s.LagForAll(ctx)
	if err != nil {
		return nil, err
	}
	var stalled []RepositoryLag
	for _, l := range all {
		if l.IsStalled {
			stalled = append(stalled, l)
		}
	}
	return stalled, nil
}
