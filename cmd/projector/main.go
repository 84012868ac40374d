// Command projector drains pending Bronze rows into Silver entities and
// EventFacts (spec component B), polling on a fixed interval.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/octostatus/estate-reporter/internal/bootstrap"
	"github.com/octostatus/estate-reporter/internal/clock"
	"github.com/octostatus/estate-reporter/internal/config"
	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/projector"
	"github.com/octostatus/estate-reporter/internal/telemetry"
)

var (
	configPath string
	pollEvery  time.Duration
	batchSize  int
	once       bool
	httpAddr   string
)

func main() {
	root := &cobra.Command{
		Use:   "projector",
		Short: "Projects pending Bronze events into Silver entities and facts",
		RunE:  runProjector,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.Flags().DurationVar(&pollEvery, "poll-interval", 10*time.Second, "interval between drain passes")
	root.Flags().IntVar(&batchSize, "batch-size", 200, "maximum rows drained per pass")
	root.Flags().BoolVar(&once, "once", false, "drain a single batch and exit")
	root.Flags().StringVar(&httpAddr, "metrics-addr", ":8081", "address to serve /metrics and /health on")

	if err := root.Execute(); err != nil {
		exitCode := 1
		if e, ok := errs.As(err); ok && e.Kind == errs.MissingConfig {
			exitCode = 2
		}
		fmt.Fprintln(os.Stderr, "projector:", err)
		os.Exit(exitCode)
	}
}

func runProjector(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger("projector")
	clk := clock.Real{}
	ctx := cmd.Context()

	stores, err := bootstrap.OpenStores(cfg, clk)
	if err != nil {
		return err
	}
	if stores.DB != nil {
		defer stores.DB.Close()
	}

	p := projector.New(stores.Bronze, stores.Silver, stores.Registry, clk, logger)

	go serveHTTP(httpAddr, logger)

	drain := func() {
		result, err := p.ProcessPending(ctx, batchSize)
		if err != nil {
			logger.Error().Err(err).Msg("projection pass failed")
			return
		}
		if result.Processed > 0 || result.Drifted > 0 {
			logger.Info().Int("processed", result.Processed).Int("drifted", result.Drifted).Msg("projection pass complete")
		}
	}

	if once {
		drain()
		return nil
	}

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Dur("interval", pollEvery).Msg("projector polling")
	for {
		select {
		case <-ticker.C:
			drain()
		case <-stop:
			return nil
		}
	}
}

func serveHTTP(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"status":"ok"}`)) })
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
