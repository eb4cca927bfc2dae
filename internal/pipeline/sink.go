package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/observability"
)

// Sink persists or publishes a finished report.
type Sink interface {
	Name() string
	Write(ctx context.Context, report *domain.Report) error
}

// MultiSink writes a report to several sinks concurrently. A failing sink does
// not stop the others; all failures are joined into the returned error.
type MultiSink struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewMultiSink fans out to sinks.
func NewMultiSink(logger *slog.Logger, metrics *observability.Metrics, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger, metrics: metrics}
}

// Name identifies the sink in logs and metrics.
func (m *MultiSink) Name() string { return "multi" }

// Write sends report to every sink and waits for all of them.
func (m *MultiSink) Write(ctx context.Context, report *domain.Report) error {
	errs := make([]error, len(m.sinks))
	var g errgroup.Group
	for i, s := range m.sinks {
		g.Go(func() error {
			if err := s.Write(ctx, report); err != nil {
				m.metrics.SinkWrites.WithLabelValues(s.Name(), "error").Inc()
				m.logger.Error("sink write failed", "sink", s.Name(), "run_id", report.RunID, "error", err)
				errs[i] = fmt.Errorf("sink %s: %w", s.Name(), err)
				return errs[i]
			}
			m.metrics.SinkWrites.WithLabelValues(s.Name(), "success").Inc()
			return nil
		})
	}
	// Wait reports only the first failure; the rest are joined from errs.
	if err := g.Wait(); err != nil {
		return errors.Join(errs...)
	}
	return nil
}
