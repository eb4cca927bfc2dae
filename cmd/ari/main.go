package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/adapter/http"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/app"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/config"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/observability"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	in, err := app.LoadInputs(cfg)
	if err != nil {
		logger.Error("failed to load inputs", "error", err)
		os.Exit(1)
	}
	for _, rowErr := range in.AlarmErrors {
		logger.Warn("skipped alarm log row", "error", rowErr)
	}
	logger.Info("inputs loaded",
		"coefficients", in.Coefficients.Len(),
		"alarms", len(in.Alarms),
		"gauges", len(in.Gauges),
		"catchments", len(in.Catchments),
		"source", cfg.Source,
	)

	source, err := app.NewSource(cfg, in, logger, metrics)
	if err != nil {
		logger.Error("failed to open series source", "error", err)
		os.Exit(1)
	}
	p, err := app.NewPipeline(cfg.Settings, source, in.Coefficients, logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, err := app.NewSinks(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to open sinks", "error", err)
		os.Exit(1)
	}
	defer sinks.Close()

	checkers := []httpadapter.ReadinessChecker{p}
	if sinks.Postgres != nil {
		checkers = append(checkers, sinks.Postgres)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(checkers...), p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start analysis runs. A zero interval runs once and exits.
	runner := pipeline.NewRunner(p, sinks.Sink, in.Request(cfg), cfg.RunInterval, logger)
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		if err := <-done; err != nil {
			logger.Error("runner error", "error", err)
			exitCode = 1
		}
	case err := <-done:
		if err != nil {
			logger.Error("runner error", "error", err)
			exitCode = 1
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		cancel()
		sinks.Close()
		os.Exit(exitCode)
	}
}
