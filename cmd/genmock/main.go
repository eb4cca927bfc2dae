// Command genmock generates a deterministic storm-day fixture set for the ARI
// analysis: coefficients, gauge metadata, catchment membership, accumulated
// rainfall series and an alarm log. Series are built from 5-minute increments
// and rolled up with the same accumulation the Moata source uses.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/ari"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

const interval = 5 * time.Minute

// site is one generated location. Storm sites receive a rain pulse peaking at
// noon; the rest see drizzle only.
type site struct {
	id       string
	name     string
	lat, lon float64
	storm    float64 // peak 5-minute increment in mm
	gapAt    int     // index of a one-hour outage, or -1
}

var gauges = []site{
	{id: "g-101", name: "Albany", lat: -36.73, lon: 174.70, storm: 9, gapAt: -1},
	{id: "g-102", name: "Henderson", lat: -36.88, lon: 174.63, storm: 0, gapAt: -1},
	{id: "g-103", name: "Manukau", lat: -36.99, lon: 174.88, storm: 6, gapAt: 130},
	{id: "g-104", name: "Waikato Border", lat: -37.20, lon: 175.10, storm: 9, gapAt: -1},
}

var pixels = []site{
	{id: "1001", storm: 10, gapAt: -1},
	{id: "1002", storm: 8, gapAt: -1},
	{id: "1003", storm: 0, gapAt: -1},
	{id: "1004", storm: 0, gapAt: -1},
	{id: "2001", storm: 0, gapAt: -1},
	{id: "2002", storm: 1, gapAt: -1},
}

var catchments = map[string][]string{
	"C-Oakley":    {"1001", "1002", "1003", "1004"},
	"C-Pakuranga": {"2001", "2002"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for fixture CSVs")
	seed := flag.Uint64("seed", 42, "random seed for drizzle noise")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Set a fixed clock so the storm day and alarm times are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.May, 10, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	day := domain.Now().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	peak := day.Add(12 * time.Hour)
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	all := append(append([]site{}, gauges...), pixels...)
	var increments []domain.RainfallSample
	for _, s := range all {
		increments = append(increments, stormIncrements(s, day, peak, rng)...)
	}

	var series []domain.RainfallSample
	for _, d := range domain.AllDurations() {
		acc, err := ari.Accumulate(increments, interval, d)
		if err != nil {
			return fmt.Errorf("accumulate %s: %w", d, err)
		}
		series = append(series, acc...)
	}
	log.Printf("series: %d increments -> %d accumulated samples", len(increments), len(series))

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"tp108_coefficients.csv", []string{"location_id", "duration_code", "m", "b"}, coefficientRows(all)},
		{"gauges.csv", []string{"location_id", "name", "lat", "lon"}, gaugeRows()},
		{"catchments.csv", []string{"catchment_id", "name", "pixel_id"}, catchmentRows()},
		{"series.csv", []string{"location_id", "timestamp", "depth_mm", "duration_code"}, seriesRows(series)},
		{"alarms.csv", []string{"assetid", "alertid", "description", "createdtimeutc", "threshold", "scope", "duration_code"}, alarmRows(peak)},
	}
	for _, f := range files {
		path := filepath.Join(*outDir, f.name)
		if err := writeCSV(path, f.header, f.rows); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
		log.Printf("wrote %s: %d rows", path, len(f.rows))
	}
	return nil
}

// stormIncrements covers the storm day at the sample interval. The pulse is
// Gaussian around peak with a 30-minute spread.
func stormIncrements(s site, day, peak time.Time, rng *rand.Rand) []domain.RainfallSample {
	steps := int(24 * time.Hour / interval)
	out := make([]domain.RainfallSample, 0, steps)
	for i := range steps {
		ts := day.Add(time.Duration(i+1) * interval)
		depth := 0.05 + 0.1*rng.Float64()
		if s.storm > 0 {
			z := ts.Sub(peak).Minutes() / 30
			depth += s.storm * math.Exp(-z*z/2)
		}
		if s.gapAt >= 0 && i >= s.gapAt && i < s.gapAt+12 {
			depth = math.NaN()
		}
		out = append(out, domain.RainfallSample{LocationID: s.id, Timestamp: ts, DepthMM: depth})
	}
	return out
}

// coefficientRows gives every site a curve whose 5-year depth grows with the
// square root of the duration.
func coefficientRows(sites []site) [][]string {
	var rows [][]string
	for _, s := range sites {
		for _, d := range domain.AllDurations() {
			m := 0.3 / math.Sqrt(float64(d.Minutes()))
			rows = append(rows, []string{s.id, d.String(), strconv.FormatFloat(m, 'f', 6, 64), "0.1"})
		}
	}
	return rows
}

func gaugeRows() [][]string {
	rows := make([][]string, 0, len(gauges))
	for _, g := range gauges {
		rows = append(rows, []string{
			g.id, g.name,
			strconv.FormatFloat(g.lat, 'f', 4, 64),
			strconv.FormatFloat(g.lon, 'f', 4, 64),
		})
	}
	return rows
}

func catchmentRows() [][]string {
	var rows [][]string
	for _, id := range []string{"C-Oakley", "C-Pakuranga"} {
		for _, px := range catchments[id] {
			rows = append(rows, []string{id, id[2:], px})
		}
	}
	return rows
}

func seriesRows(series []domain.RainfallSample) [][]string {
	rows := make([][]string, 0, len(series))
	for _, s := range series {
		depth := ""
		if !s.IsNull() {
			depth = strconv.FormatFloat(s.DepthMM, 'f', 3, 64)
		}
		rows = append(rows, []string{s.LocationID, s.Timestamp.Format(time.RFC3339), depth, s.Duration.String()})
	}
	return rows
}

// alarmRows covers each verdict: storm gauges raise supported overflow
// alarms, a quiet gauge a false one, and an outage gauge a recency alarm.
func alarmRows(peak time.Time) [][]string {
	at := func(d time.Duration) string { return peak.Add(d).Format(time.RFC3339) }
	return [][]string{
		{"g-101", "AL-0001", "Max TP108 ARI", at(10 * time.Minute), "5", "", ""},
		{"g-102", "AL-0002", "Max TP108 ARI", at(0), "5", "", ""},
		{"g-103", "AL-0003", "Data Recency", at(-time.Hour + 25*time.Minute), "", "", ""},
		{"g-104", "AL-0004", "Max TP108 ARI", at(5 * time.Minute), "5", "", ""},
		{"g-101", "AL-0005", "Battery voltage low", at(2 * time.Hour), "", "", ""},
		{"C-Oakley", "AL-0006", "Max TP108 ARI", at(15 * time.Minute), "0.3", "catchment", "60m"},
		{"C-Pakuranga", "AL-0007", "Max TP108 ARI", at(0), "0.3", "catchment", "60m"},
		{"g-999", "AL-0008", "Max TP108 ARI", at(0), "5", "", ""},
	}
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
