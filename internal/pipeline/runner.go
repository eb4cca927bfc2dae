package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// finalWriteTimeout bounds the write of a report produced by a cancelled run.
const finalWriteTimeout = 30 * time.Second

// Runner repeats pipeline runs on an interval and hands each report to a sink.
type Runner struct {
	pipeline *Pipeline
	sink     Sink
	request  Request
	interval time.Duration
	logger   *slog.Logger
}

// NewRunner creates a Runner. An interval of zero runs once.
func NewRunner(p *Pipeline, sink Sink, req Request, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{pipeline: p, sink: sink, request: req, interval: interval, logger: logger}
}

// Run executes runs until the context is cancelled, or once when no interval
// is set. A cancelled run still writes its partial report.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner started", "interval", r.interval)
	for {
		report, err := r.pipeline.Run(ctx, r.request)
		if err != nil {
			return err
		}

		writeCtx := ctx
		if report.Cancelled {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
			defer cancel()
		}
		if err := r.sink.Write(writeCtx, report); err != nil {
			if r.interval <= 0 || report.Cancelled {
				return err
			}
			r.logger.Error("report write failed, will retry next run", "run_id", report.RunID, "error", err)
		}

		if report.Cancelled || r.interval <= 0 {
			return nil
		}
		if !sleepWithContext(ctx, r.interval) {
			r.logger.Info("runner stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
