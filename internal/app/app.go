// Package app assembles the pipeline from configuration and reference files.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/adapter/csvfile"
	kafkaadapter "github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/adapter/kafka"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/adapter/moata"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/adapter/postgres"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/alarm"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/ari"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/config"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/observability"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/pipeline"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/quality"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/spatial"
)

// Inputs is the reference data one run analyses.
type Inputs struct {
	Coefficients *ari.CoefficientTable
	Alarms       []domain.AlarmRecord
	AlarmErrors  []error
	Gauges       []domain.Gauge
	Catchments   []domain.Catchment
}

// LoadInputs reads the coefficient table and the optional alarm, gauge and
// catchment files named by cfg. A malformed coefficient table is fatal;
// malformed alarm rows are returned in AlarmErrors.
func LoadInputs(cfg *config.Config) (*Inputs, error) {
	rows, err := csvfile.LoadCoefficients(cfg.CoefficientsPath)
	if err != nil {
		return nil, err
	}
	table, err := ari.NewCoefficientTable(rows)
	if err != nil {
		return nil, fmt.Errorf("build coefficient table: %w", err)
	}
	in := &Inputs{Coefficients: table}

	if cfg.AlarmLogPath != "" {
		if in.Alarms, in.AlarmErrors, err = csvfile.LoadAlarmLog(cfg.AlarmLogPath); err != nil {
			return nil, err
		}
	}
	if cfg.GaugesPath != "" {
		if in.Gauges, err = csvfile.LoadGauges(cfg.GaugesPath); err != nil {
			return nil, err
		}
	}
	if cfg.CatchmentsPath != "" {
		if in.Catchments, err = csvfile.LoadCatchments(cfg.CatchmentsPath); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// Request builds the run request for in over the configured analysis range.
func (in *Inputs) Request(cfg *config.Config) pipeline.Request {
	return pipeline.Request{
		Gauges:     in.Gauges,
		Catchments: in.Catchments,
		Alarms:     in.Alarms,
		Start:      cfg.AnalysisStart,
		End:        cfg.AnalysisEnd,
	}
}

// NewSource returns the configured series source.
func NewSource(cfg *config.Config, in *Inputs, logger *slog.Logger, metrics *observability.Metrics) (pipeline.Source, error) {
	switch cfg.Source {
	case config.SourceMoata:
		client := moata.NewClient(moata.Options{
			BaseURL:      cfg.MoataBaseURL,
			Token:        cfg.MoataToken,
			Timeout:      cfg.MoataTimeout,
			CacheSize:    cfg.MoataCacheSize,
			CollectionID: cfg.MoataCollectionID,
			TraceSetID:   cfg.MoataTraceSetID,
			DataInterval: cfg.MoataDataInterval,
		}, logger, metrics)
		client.RegisterCatchments(in.Catchments...)
		return client, nil
	default:
		samples, err := csvfile.LoadSeries(cfg.SeriesPath)
		if err != nil {
			return nil, err
		}
		return csvfile.NewSeriesStore(samples, in.Catchments), nil
	}
}

// NewPipeline wires the analysis components around source.
func NewPipeline(settings domain.Settings, source pipeline.Source, table *ari.CoefficientTable, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	filter, err := quality.NewFilter(settings)
	if err != nil {
		return nil, err
	}
	return pipeline.New(
		source,
		ari.NewEngine(table, settings),
		spatial.NewAggregator(settings),
		alarm.NewValidator(settings),
		filter,
		settings,
		logger,
		metrics,
	), nil
}

// Sinks holds the configured report sinks and how to release them.
type Sinks struct {
	Sink     pipeline.Sink
	Postgres *postgres.Sink
	closers  []func()
}

// Close releases every sink connection.
func (s *Sinks) Close() {
	for _, c := range s.closers {
		c()
	}
}

// NewSinks always writes CSV output and adds Kafka and PostgreSQL when configured.
func NewSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Sinks, error) {
	out := &Sinks{}
	sinks := []pipeline.Sink{csvfile.NewWriter(cfg.OutputDir, logger)}

	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, w)
		out.closers = append(out.closers, func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
	}
	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewSink(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			out.Close()
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			out.Close()
			return nil, err
		}
		sinks = append(sinks, pg)
		out.Postgres = pg
		out.closers = append(out.closers, pg.Close)
	}

	out.Sink = pipeline.NewMultiSink(logger, metrics, sinks...)
	return out, nil
}
