package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the raw counters and gauges the pipeline exposes.
// This is instrumentation only: the dashboards that would read these
// series are explicitly out of scope (spec §1).
type Metrics struct {
	IngestionLagSeconds       *prometheus.GaugeVec
	OldestWatermarkAgeSeconds *prometheus.GaugeVec
	ReportsGenerated          *prometheus.CounterVec
	IngestionRuns             *prometheus.CounterVec
}

// NewMetrics constructs and registers the pipeline's metrics against reg.
// Pass prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestionLagSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "estate_reporter",
			Subsystem: "ingestion",
			Name:      "lag_seconds",
			Help:      "Seconds since the newest stream watermark for a repository, per repository.",
		}, []string{"repository"}),
		OldestWatermarkAgeSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "estate_reporter",
			Subsystem: "ingestion",
			Name:      "oldest_watermark_age_seconds",
			Help:      "Seconds since the oldest stream watermark for a repository, per repository.",
		}, []string{"repository"}),
		ReportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estate_reporter",
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Reports persisted, by scope and status.",
		}, []string{"scope", "status"}),
		IngestionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estate_reporter",
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Ingestion worker runs, by outcome category.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.IngestionLagSeconds, m.OldestWatermarkAgeSeconds, m.ReportsGenerated, m.IngestionRuns)
	return m
}
