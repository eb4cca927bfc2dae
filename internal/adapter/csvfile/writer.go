package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// Output file names.
const (
	ARIResultsFile  = "ari_results.csv"
	CoverageFile    = "catchment_coverage.csv"
	VerdictsFile    = "validation_verdicts.csv"
	RejectionsFile  = "rejections.csv"
	SkippedFile     = "skipped_samples.csv"
	SummaryFile     = "summary.json"
	timestampLayout = time.RFC3339
)

var (
	ariHeader       = []string{"location_id", "duration_code", "timestamp", "depth_mm", "ari_years"}
	coverageHeader  = []string{"catchment_id", "duration_code", "timestamp", "fraction_exceeding", "pixels_with_data", "pixels_total"}
	verdictHeader   = []string{"alarm_id", "location_id", "window_start", "window_end", "max_ari_observed", "threshold", "status", "reason", "metric"}
	rejectionHeader = []string{"location_id", "rule", "reason"}
	skippedHeader   = []string{"location_id", "duration_code", "reason", "count"}
)

// Writer writes a report as CSV tables plus a JSON summary into a directory.
// In the verdict table the trailing metric column gives the unit of
// max_ari_observed and threshold; recency verdicts hold hours there.
// Each write replaces the previous files, so re-running a deterministic
// analysis leaves identical output.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a writer targeting dir, which is created on first write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "csv" }

// Write stores every table of the report.
func (w *Writer) Write(ctx context.Context, report *domain.Report) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tables := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{ARIResultsFile, ariHeader, ariRows(report.ARIResults)},
		{CoverageFile, coverageHeader, coverageRows(report.Coverage)},
		{VerdictsFile, verdictHeader, verdictRows(report.Verdicts)},
		{RejectionsFile, rejectionHeader, rejectionRows(report.Rejections)},
		{SkippedFile, skippedHeader, skippedRows(report.Skipped)},
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writeCSV(t.name, t.header, t.rows); err != nil {
			return err
		}
	}

	if err := w.writeJSON(SummaryFile, summaryDocument(report)); err != nil {
		return err
	}
	w.logger.Info("report written", "dir", w.dir,
		"ari_results", len(report.ARIResults),
		"coverage_rows", len(report.Coverage),
		"verdicts", len(report.Verdicts),
	)
	return nil
}

func (w *Writer) writeCSV(name string, header []string, rows [][]string) error {
	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return os.Rename(tmp, path)
}

func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path+".tmp", data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(path+".tmp", path)
}

type summaryDoc struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Cancelled   bool           `json:"cancelled"`
	Unprocessed []string       `json:"unprocessed,omitempty"`
	Counts      map[string]int `json:"counts"`
	domain.Summary
}

func summaryDocument(r *domain.Report) summaryDoc {
	return summaryDoc{
		RunID:       r.RunID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Cancelled:   r.Cancelled,
		Unprocessed: r.Unprocessed,
		Counts: map[string]int{
			"ari_results": len(r.ARIResults),
			"coverage":    len(r.Coverage),
			"verdicts":    len(r.Verdicts),
			"rejections":  len(r.Rejections),
		},
		Summary: r.Summary,
	}
}

func ariRows(results []domain.ARIResult) [][]string {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			r.LocationID,
			string(r.Duration),
			r.Timestamp.UTC().Format(timestampLayout),
			fixed(r.DepthMM, 2),
			fixed(r.ARIYears, 3),
		}
	}
	return rows
}

func coverageRows(coverage []domain.CatchmentCoverage) [][]string {
	rows := make([][]string, len(coverage))
	for i, c := range coverage {
		fraction := ""
		if c.Sufficient() {
			fraction = fixed(*c.FractionExceeding, 4)
		}
		rows[i] = []string{
			c.CatchmentID,
			string(c.Duration),
			c.Timestamp.UTC().Format(timestampLayout),
			fraction,
			strconv.Itoa(c.PixelsWithData),
			strconv.Itoa(c.PixelsTotal),
		}
	}
	return rows
}

func verdictRows(verdicts []domain.ValidationVerdict) [][]string {
	rows := make([][]string, len(verdicts))
	for i, v := range verdicts {
		observed := ""
		if v.MaxObserved != nil {
			observed = fixed(*v.MaxObserved, 3)
		}
		rows[i] = []string{
			v.AlarmID,
			v.LocationID,
			v.WindowStart.UTC().Format(timestampLayout),
			v.WindowEnd.UTC().Format(timestampLayout),
			observed,
			fixed(v.Threshold, 3),
			string(v.Status),
			v.Reason,
			v.Metric,
		}
	}
	return rows
}

func rejectionRows(rejections []domain.Rejection) [][]string {
	rows := make([][]string, len(rejections))
	for i, r := range rejections {
		rows[i] = []string{r.LocationID, r.Rule, r.Reason}
	}
	return rows
}

func skippedRows(skipped []domain.SkipRecord) [][]string {
	rows := make([][]string, len(skipped))
	for i, s := range skipped {
		rows[i] = []string{s.LocationID, string(s.Duration), s.Reason, strconv.Itoa(s.Count)}
	}
	return rows
}

// fixed renders v with a fixed number of decimal places, without the
// exponent notation strconv falls back to for very small ARIs.
func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
