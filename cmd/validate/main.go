// Command validate checks the integrity of a set of analysis inputs and then
// runs the ARI analysis once over them. It verifies the coefficient table,
// the alarm log, the rainfall series and catchment membership before
// reporting verdict counts.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -coefficients data/mock/tp108_coefficients.csv \
//	  -alarms data/mock/alarms.csv \
//	  -series data/mock/series.csv \
//	  -catchments data/mock/catchments.csv \
//	  -out data/mock/results
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/adapter/csvfile"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/app"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/ari"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/config"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/observability"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cfg := &config.Config{Source: config.SourceFile, Settings: domain.DefaultSettings()}
	flag.StringVar(&cfg.CoefficientsPath, "coefficients", "", "path to the TP108 coefficient CSV")
	flag.StringVar(&cfg.AlarmLogPath, "alarms", "", "path to the alarm log CSV")
	flag.StringVar(&cfg.GaugesPath, "gauges", "", "path to the gauge metadata CSV")
	flag.StringVar(&cfg.CatchmentsPath, "catchments", "", "path to the catchment membership CSV")
	flag.StringVar(&cfg.SeriesPath, "series", "", "path to the accumulated rainfall series CSV")
	flag.StringVar(&cfg.OutputDir, "out", "", "directory for result CSVs (optional)")
	asOf := flag.String("as-of", "", "RFC3339 time inactivity is judged against (default: last sample)")
	flag.Parse()

	if cfg.CoefficientsPath == "" || cfg.SeriesPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(cfg, *asOf); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, asOf string) int {
	fmt.Println("=== Rainfall ARI Input Validation ===")
	fmt.Println()

	in, err := app.LoadInputs(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load inputs: %v\n", err)
		return 1
	}
	series, err := csvfile.LoadSeries(cfg.SeriesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load series: %v\n", err)
		return 1
	}

	// Freeze the clock so inactivity is judged as of the data, not today.
	now, err := clockFor(asOf, series)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	domain.SetClock(clockwork.NewFakeClockAt(now))
	defer domain.SetClock(nil)

	analysis := &phase{name: "Analysis run"}
	phases := []*phase{
		validateCoefficients(in.Coefficients, cfg.Settings),
		validateAlarmLog(in),
		validateSeries(series, cfg.Settings.SampleInterval),
		validateCatchments(in.Catchments, in.Coefficients, cfg.Settings.Durations),
		analysis,
	}
	report := runAnalysis(cfg, in, series, analysis)

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Inputs: %d coefficients, %d alarms, %d gauges, %d catchments, %d samples\n",
		in.Coefficients.Len(), len(in.Alarms), len(in.Gauges), len(in.Catchments), len(series))
	if report != nil {
		counts := report.StatusCounts()
		fmt.Printf("Verdicts: %d supported, %d not supported, %d unverifiable\n",
			counts[domain.StatusSupported], counts[domain.StatusNotSupported], counts[domain.StatusUnverifiable])
		fmt.Printf("Results: %d ARI rows, %d coverage rows, %d rejections, %d skipped samples\n",
			len(report.ARIResults), len(report.Coverage), len(report.Rejections), len(report.Skipped))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func clockFor(asOf string, series []domain.RainfallSample) (time.Time, error) {
	if asOf != "" {
		t, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid -as-of: %w", err)
		}
		return t.UTC(), nil
	}
	var latest time.Time
	for _, s := range series {
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}
	if latest.IsZero() {
		return time.Now().UTC(), nil
	}
	return latest, nil
}

// validateCoefficients checks every row yields an increasing ARI curve
// that reaches the alarm threshold at a positive depth.
func validateCoefficients(table *ari.CoefficientTable, settings domain.Settings) *phase {
	p := &phase{name: "Coefficient table"}
	if table.Len() == 0 {
		p.errorf("coefficient table is empty")
		return p
	}
	for _, loc := range table.Locations() {
		for _, d := range settings.Durations {
			c, err := table.Lookup(loc, d)
			if err != nil {
				continue
			}
			if c.M <= 0 {
				p.errorf("%s %s: m=%v does not increase with depth", loc, d, c.M)
				continue
			}
			depth, err := ari.DepthForARI(settings.ARIThresholdYears, c)
			if err != nil || depth <= 0 {
				p.errorf("%s %s: %.0fy threshold depth %.2fmm is not positive", loc, d, settings.ARIThresholdYears, depth)
			}
		}
	}
	return p
}

func validateAlarmLog(in *app.Inputs) *phase {
	p := &phase{name: "Alarm log"}
	for _, err := range in.AlarmErrors {
		p.errorf("%v", err)
	}
	seen := make(map[string]bool, len(in.Alarms))
	for _, a := range in.Alarms {
		if a.AlarmID == "" {
			p.errorf("alarm at %s has no id", a.LocationID)
			continue
		}
		if seen[a.AlarmID] {
			p.errorf("duplicate alarm id %s", a.AlarmID)
		}
		seen[a.AlarmID] = true
		if a.LocationID == "" {
			p.errorf("alarm %s has no location", a.AlarmID)
		}
	}
	return p
}

type seriesKey struct {
	location string
	duration domain.Duration
}

// validateSeries checks each (location, duration) series has unique
// timestamps on the sample grid.
func validateSeries(series []domain.RainfallSample, interval time.Duration) *phase {
	p := &phase{name: "Rainfall series"}
	if len(series) == 0 {
		p.errorf("series file has no samples")
		return p
	}
	grouped := make(map[seriesKey][]time.Time)
	for _, s := range series {
		if s.LocationID == "" {
			p.errorf("sample at %s has no location", s.Timestamp.Format(time.RFC3339))
			continue
		}
		if !s.IsNull() && s.DepthMM < 0 {
			p.errorf("%s %s at %s: negative depth %.2f", s.LocationID, s.Duration, s.Timestamp.Format(time.RFC3339), s.DepthMM)
		}
		k := seriesKey{s.LocationID, s.Duration}
		grouped[k] = append(grouped[k], s.Timestamp)
	}
	for k, times := range grouped {
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		for i := 1; i < len(times); i++ {
			gap := times[i].Sub(times[i-1])
			switch {
			case gap == 0:
				p.errorf("%s %s: duplicate sample at %s", k.location, k.duration, times[i].Format(time.RFC3339))
			case gap%interval != 0:
				p.errorf("%s %s: sample at %s is off the %s grid", k.location, k.duration, times[i].Format(time.RFC3339), interval)
			}
		}
	}
	return p
}

// validateCatchments checks each catchment has members and that every
// member pixel has a coefficient for each analysed duration.
func validateCatchments(catchments []domain.Catchment, table *ari.CoefficientTable, durations []domain.Duration) *phase {
	p := &phase{name: "Catchment membership"}
	for _, c := range catchments {
		if len(c.Members) == 0 {
			p.errorf("catchment %s has no member pixels", c.ID)
			continue
		}
		for _, px := range c.Members {
			for _, d := range durations {
				if _, err := table.Lookup(px, d); err != nil {
					p.errorf("catchment %s: %v", c.ID, err)
				}
			}
		}
	}
	return p
}

func runAnalysis(cfg *config.Config, in *app.Inputs, series []domain.RainfallSample, p *phase) *domain.Report {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	source := csvfile.NewSeriesStore(series, in.Catchments)
	pl, err := app.NewPipeline(cfg.Settings, source, in.Coefficients, logger, metrics)
	if err != nil {
		p.errorf("build pipeline: %v", err)
		return nil
	}
	ctx := context.Background()
	report, err := pl.Run(ctx, in.Request(cfg))
	if err != nil {
		p.errorf("run: %v", err)
		return nil
	}
	if cfg.OutputDir != "" {
		sink := pipeline.NewMultiSink(logger, metrics, csvfile.NewWriter(cfg.OutputDir, logger))
		if err := sink.Write(ctx, report); err != nil {
			p.errorf("write results: %v", err)
		}
	}
	return report
}
