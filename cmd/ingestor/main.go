// Command ingestor runs the incremental ingestion worker (spec component
// D): on a schedule, it walks every ingestion-enabled repository through
// the fixed stream order and appends new envelopes to Bronze.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/octostatus/estate-reporter/internal/bootstrap"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/config"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/health"
	"github.com/octostatus/estate-reporter/internal/ingestion"
	"github.com/octostatus/estate-reporter/internal/registry"
	"github.com/octostatus/estate-reporter/internal/telemetry"
)

var (
	configPath string
	cronSpec   string
	once       bool
)

func main() {
	root := &cobra.Command{
		Use:   "ingestor",
		Short: "Walks ingestion-enabled repositories and appends new events to Bronze",
		RunE:  runIngestor,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.Flags().StringVar(&cronSpec, "schedule", "*/5 * * * *", "cron schedule for recurring sweeps")
	root.Flags().BoolVar(&once, "once", false, "run a single sweep and exit instead of scheduling")

	if err := root.Execute(); err != nil {
		exitCode := 1
		if e, ok := errs.As(err); ok && e.Kind == errs.MissingConfig {
			exitCode = 2
		}
		fmt.Fprintln(os.Stderr, "ingestor:", err)
		os.Exit(exitCode)
	}
}

func runIngestor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger("ingestor")
	clk := clock.Real{}
	ctx := cmd.Context()

	stores, err := bootstrap.OpenStores(cfg, clk)
	if err != nil {
		return err
	}
	if stores.DB != nil {
		defer stores.DB.Close()
	}

	source, err := bootstrap.RemoteSource(ctx, cfg)
	if err != nil {
		return err
	}

	offsets := offsetStoreFor(stores)
	publisher := bootstrap.EventBus(cfg)
	reg := registry.New(stores.Registry, nil, logger)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	worker := ingestion.NewWorker(stores.Bronze, offsets, source, publisher, clk, logger,
		cfg.StalledThreshold(), cfg.IngestionMaxEventsPerRun).WithMetrics(metrics)

	healthSvc := health.New(offsets, clk, cfg.StalledThreshold())

	go serveMetrics(cfg.HTTPAddr, logger)

	sweep := func() {
		sweepOnce(ctx, reg, worker, healthSvc, metrics, logger)
	}

	if once {
		sweep()
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cronSpec, sweep); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cronSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info().Str("schedule", cronSpec).Msg("ingestor scheduled")
	waitForSignal()
	return nil
}

func sweepOnce(ctx context.Context, reg *registry.Registry, worker *ingestion.Worker, healthSvc *health.Service, metrics *telemetry.Metrics, logger zerolog.Logger) {
	repos, err := reg.ListActive(ctx, 0, 0)
	if err != nil {
		logger.Error().Err(err).Msg("list active repositories failed")
		return
	}

	for _, repo := range repos {
		result := worker.IngestRepository(ctx, repo)
		logger.Info().
			Str("owner", repo.Owner).Str("repo", repo.Name).
			Str("state", string(result.State)).Int("appended", result.Appended).
			Interface("truncated", result.Truncated).
			Msg("ingestion run complete")
	}

	if err := healthSvc.PublishMetrics(ctx, metrics); err != nil {
		logger.Error().Err(err).Msg("publish lag metrics failed")
	}
}

func offsetStoreFor(stores *bootstrap.Stores) ingestion.OffsetStore {
	if stores.DB == nil {
		return ingestion.NewMemoryOffsetStore()
	}
	return ingestion.NewPGOffsetStore(stores.DB)
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"status":"ok"}`)) })
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func waitForSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
}
