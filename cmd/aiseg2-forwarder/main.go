// Command aiseg2-forwarder scrapes a Panasonic AiSEG2 home energy
// controller and forwards its measurements to InfluxDB v2. Configuration
// is entirely environment-driven (spec.md §6); there is no flag surface,
// unlike the teacher's myq-status CLI, because this process runs
// unattended as a long-lived service rather than an interactive tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/breaker"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/collector"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/config"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/fetch"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/logging"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/metrics"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/model"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/supervisor"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/writer"
)

// shutdownGrace bounds how long the supervisor may take to drain in-flight
// work after a termination signal (spec.md §4.6: "suggested 5 s").
const shutdownGrace = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().
			Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	f := fetch.New(cfg.AiSEG2URL, cfg.AiSEG2User, cfg.AiSEG2Password, cfg.CollectorTaskTimeout)
	w := writer.New(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket)
	defer w.Close()

	reg := prometheus.NewRegistry()
	metricsReg := metrics.New(reg)

	breakerCfg := breaker.Config{
		FailureThreshold:         cfg.BreakerFailureThreshold,
		RecoveryTimeout:          cfg.BreakerRecoveryTimeout,
		HalfOpenSuccessThreshold: cfg.BreakerHalfOpenSuccessThreshold,
		HalfOpenFailureThreshold: cfg.BreakerHalfOpenFailureThreshold,
	}

	newBreaker := func() *breaker.Breaker { return breaker.New(breakerCfg, breaker.SystemClock{}) }

	statusCadence := supervisor.CadenceConfig{
		Cadence:  model.Status,
		Interval: cfg.StatusInterval,
		Bindings: []supervisor.Binding{
			{Collector: collector.NewPower(f, log), Breaker: newBreaker()},
			{Collector: collector.NewClimate(f, log), Breaker: newBreaker()},
		},
	}
	totalCadence := supervisor.CadenceConfig{
		Cadence:  model.Total,
		Interval: cfg.TotalInterval,
		Bindings: []supervisor.Binding{
			{Collector: collector.NewDailyTotal(f, cfg.TotalInitialDays, log), Breaker: newBreaker()},
			{Collector: collector.NewCircuitDailyTotal(f, cfg.TotalInitialDays, log), Breaker: newBreaker()},
		},
	}

	sup := supervisor.New(
		[]supervisor.CadenceConfig{statusCadence, totalCadence},
		w, metricsReg, log,
		cfg.CollectorTaskTimeout, shutdownGrace,
	)

	metricsServer := metrics.NewServer(cfg.MetricsAddr, reg, log)
	go func() {
		if err := metricsServer.Run(); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	trap := make(chan os.Signal, 1)
	signal.Notify(trap, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-trap
		log.Info().Str("signal", sig.String()).Msg("received termination signal, shutting down")
		cancel()
	}()

	log.Info().Str("aiseg2_url", cfg.AiSEG2URL).Str("influxdb_url", cfg.InfluxDBURL).
		Dur("status_interval", cfg.StatusInterval).Dur("total_interval", cfg.TotalInterval).
		Msg("aiseg2-forwarder starting")

	if err := sup.Run(ctx); err != nil {
		log.Error().Err(err).Msg("supervisor exited with error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), metrics.DefaultShutdownTimeout())
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server did not shut down cleanly")
	}

	log.Info().Msg("aiseg2-forwarder stopped")
}
