// Package postgres stores pipeline reports in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// maxRowsPerInsert keeps each statement well under the 65535 parameter limit.
const maxRowsPerInsert = 1000

// Sink upserts report rows into PostgreSQL.
type Sink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSink connects to databaseURL.
func NewSink(ctx context.Context, databaseURL string, logger *slog.Logger) (*Sink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Sink{pool: pool, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "postgres" }

// EnsureSchema creates the result tables when missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Sink) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Write upserts every table of report in one transaction.
func (s *Sink) Write(ctx context.Context, report *domain.Report) error {
	queries := upserts(report)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, q := range queries {
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit report %s: %w", report.RunID, err)
	}
	s.logger.Info("report stored", "run_id", report.RunID, "statements", len(queries))
	return nil
}

// Close releases the pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// builder returns a squirrel builder using PostgreSQL placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// upserts builds the insert statements for every non-empty table.
func upserts(r *domain.Report) []squirrel.InsertBuilder {
	var out []squirrel.InsertBuilder

	for _, chunk := range chunks(len(r.ARIResults)) {
		q := builder().Insert(tableARIResults).
			Columns("location_id", "duration_code", "ts", "depth_mm", "ari_years", "out_of_range", "run_id")
		for _, a := range r.ARIResults[chunk[0]:chunk[1]] {
			q = q.Values(a.LocationID, string(a.Duration), a.Timestamp.UTC(), a.DepthMM, a.ARIYears, a.OutOfRange, r.RunID)
		}
		out = append(out, q.Suffix(`ON CONFLICT (location_id, duration_code, ts) DO UPDATE SET
			depth_mm = EXCLUDED.depth_mm, ari_years = EXCLUDED.ari_years,
			out_of_range = EXCLUDED.out_of_range, run_id = EXCLUDED.run_id`))
	}

	for _, chunk := range chunks(len(r.Coverage)) {
		q := builder().Insert(tableCoverage).
			Columns("catchment_id", "duration_code", "ts", "fraction_exceeding", "pixels_with_data", "pixels_exceeding", "pixels_total", "reason", "run_id")
		for _, c := range r.Coverage[chunk[0]:chunk[1]] {
			q = q.Values(c.CatchmentID, string(c.Duration), c.Timestamp.UTC(), c.FractionExceeding, c.PixelsWithData, c.PixelsExceeding, c.PixelsTotal, c.Reason, r.RunID)
		}
		out = append(out, q.Suffix(`ON CONFLICT (catchment_id, duration_code, ts) DO UPDATE SET
			fraction_exceeding = EXCLUDED.fraction_exceeding, pixels_with_data = EXCLUDED.pixels_with_data,
			pixels_exceeding = EXCLUDED.pixels_exceeding, pixels_total = EXCLUDED.pixels_total,
			reason = EXCLUDED.reason, run_id = EXCLUDED.run_id`))
	}

	for _, chunk := range chunks(len(r.Verdicts)) {
		q := builder().Insert(tableVerdicts).
			Columns("alarm_id", "location_id", "window_start", "window_end", "max_ari_observed", "threshold", "metric", "status", "reason", "run_id")
		for _, v := range r.Verdicts[chunk[0]:chunk[1]] {
			q = q.Values(v.AlarmID, v.LocationID, v.WindowStart.UTC(), v.WindowEnd.UTC(), v.MaxObserved, v.Threshold, v.Metric, string(v.Status), v.Reason, r.RunID)
		}
		out = append(out, q.Suffix(`ON CONFLICT (alarm_id) DO UPDATE SET
			location_id = EXCLUDED.location_id, window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end, max_ari_observed = EXCLUDED.max_ari_observed,
			threshold = EXCLUDED.threshold, metric = EXCLUDED.metric, status = EXCLUDED.status,
			reason = EXCLUDED.reason, run_id = EXCLUDED.run_id`))
	}

	rejections := dedupRejections(r.Rejections)
	for _, chunk := range chunks(len(rejections)) {
		q := builder().Insert(tableRejections).Columns("location_id", "rule", "reason", "fatal", "run_id")
		for _, rej := range rejections[chunk[0]:chunk[1]] {
			q = q.Values(rej.LocationID, rej.Rule, rej.Reason, rej.Fatal, r.RunID)
		}
		out = append(out, q.Suffix(`ON CONFLICT (location_id, rule, reason) DO UPDATE SET
			fatal = EXCLUDED.fatal, run_id = EXCLUDED.run_id`))
	}
	return out
}

// dedupRejections drops repeats, which one INSERT ... ON CONFLICT cannot hold.
func dedupRejections(in []domain.Rejection) []domain.Rejection {
	type key struct{ loc, rule, reason string }
	seen := make(map[key]bool, len(in))
	out := make([]domain.Rejection, 0, len(in))
	for _, r := range in {
		k := key{r.LocationID, r.Rule, r.Reason}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// chunks splits [0, n) into [start, end) ranges of at most maxRowsPerInsert.
func chunks(n int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += maxRowsPerInsert {
		out = append(out, [2]int{start, min(start+maxRowsPerInsert, n)})
	}
	return out
}
