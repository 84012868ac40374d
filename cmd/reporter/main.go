// Command reporter serves the on-demand reporting HTTP endpoint (spec
// component J) and, on a schedule, sweeps every active repository through
// the reporting orchestrator so coverage never falls too far behind.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/octostatus/estate-reporter/internal/bootstrap"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/config"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/evidence"
	"github.com/octostatus/estate-reporter/internal/httpapi"
	"github.com/octostatus/estate-reporter/internal/registry"
	"github.com/octostatus/estate-reporter/internal/reporting"
	"github.com/octostatus/estate-reporter/internal/telemetry"
)

var (
	configPath string
	sweepCron  string
)

func main() {
	root := &cobra.Command{
		Use:   "reporter",
		Short: "Serves the on-demand reporting API and sweeps active repositories on a schedule",
		RunE:  runReporter,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.Flags().StringVar(&sweepCron, "sweep-schedule", "0 * * * *", "cron schedule for estate-wide report sweeps")

	if err := root.Execute(); err != nil {
		exitCode := 1
		if e, ok := errs.As(err); ok && e.Kind == errs.MissingConfig {
			exitCode = 2
		}
		fmt.Fprintln(os.Stderr, "reporter:", err)
		os.Exit(exitCode)
	}
}

func runReporter(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger("reporter")
	clk := clock.Real{}
	ctx := cmd.Context()

	stores, err := bootstrap.OpenStores(cfg, clk)
	if err != nil {
		return err
	}
	if stores.DB != nil {
		defer stores.DB.Close()
	}

	reportSink, err := bootstrap.ReportSink(ctx, cfg)
	if err != nil {
		return err
	}

	builder := evidence.New(stores.Silver, stores.Gold)
	model := bootstrap.StatusModel(cfg)
	locker := bootstrap.Locker(cfg)
	publisher := bootstrap.EventBus(cfg)
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	orchestrator := reporting.New(builder, stores.Gold, model, reportSink, locker, publisher, clk, logger,
		cfg.ReportingWindow(), cfg.ValidationMaxAttempts).WithMetrics(metrics)

	reg := registry.New(stores.Registry, nil, logger)
	server := httpapi.New(reg, orchestrator, logger, cfg.JWTSecret)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(sweepCron, func() { sweepEstate(ctx, reg, orchestrator, logger) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", sweepCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("reporter listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	waitForShutdown(httpServer, logger)
	return nil
}

func sweepEstate(ctx context.Context, reg *registry.Registry, orchestrator *reporting.Orchestrator, logger zerolog.Logger) {
	repos, err := reg.ListActive(ctx, 0, 0)
	if err != nil {
		logger.Error().Err(err).Msg("list active repositories failed")
		return
	}
	for _, repo := range repos {
		result, err := orchestrator.RunForRepository(ctx, repo)
		if err != nil && result.Outcome != reporting.OutcomeValidationFailed {
			logger.Error().Err(err).Str("owner", repo.Owner).Str("repo", repo.Name).Msg("scheduled report generation failed")
			continue
		}
		logger.Info().Str("owner", repo.Owner).Str("repo", repo.Name).Str("outcome", string(result.Outcome)).Msg("scheduled report sweep complete")
	}
}

func waitForShutdown(srv *http.Server, logger zerolog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
