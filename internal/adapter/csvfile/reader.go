// Package csvfile reads reference tables and rainfall series from CSV files
// and writes the result tables back out.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// table is a parsed CSV file with a lower-cased header index.
type table struct {
	header map[string]int
	rows   [][]string
}

func readTable(r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &table{header: map[string]int{}}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	t := &table{header: make(map[string]int, len(headers))}
	for i, h := range headers {
		t.header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", len(t.rows)+2, err)
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

// column resolves the first header present among aliases.
func (t *table) column(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := t.header[a]; ok {
			return i, true
		}
	}
	return -1, false
}

func (t *table) require(aliases ...string) (int, error) {
	if i, ok := t.column(aliases...); ok {
		return i, nil
	}
	return -1, fmt.Errorf("missing required csv header: %s", aliases[0])
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
}

// parseTime accepts RFC 3339 and the space-separated exports of the alarm
// log. Values without an offset are taken as UTC.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func openFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := read(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ReadCoefficients parses a TP108 table in either long form
// (location_id, duration_code, m, b) or wide form (pixelindex, 10m_b, 10m_m, ...).
func ReadCoefficients(r io.Reader) ([]domain.Coefficient, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if _, wide := t.column("pixelindex"); wide {
		return readWideCoefficients(t)
	}
	return readLongCoefficients(t)
}

func readLongCoefficients(t *table) ([]domain.Coefficient, error) {
	loc, err := t.require("location_id", "trace_id", "pixelindex")
	if err != nil {
		return nil, err
	}
	dur, err := t.require("duration_code", "duration")
	if err != nil {
		return nil, err
	}
	mCol, err := t.require("m")
	if err != nil {
		return nil, err
	}
	bCol, err := t.require("b")
	if err != nil {
		return nil, err
	}

	out := make([]domain.Coefficient, 0, len(t.rows))
	for i, row := range t.rows {
		d, err := domain.ParseDuration(field(row, dur))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		m, err := strconv.ParseFloat(field(row, mCol), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid m: %w", i+2, err)
		}
		b, err := strconv.ParseFloat(field(row, bCol), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid b: %w", i+2, err)
		}
		out = append(out, domain.Coefficient{LocationID: field(row, loc), Duration: d, M: m, B: b})
	}
	return out, nil
}

func readWideCoefficients(t *table) ([]domain.Coefficient, error) {
	loc, _ := t.column("pixelindex")
	var out []domain.Coefficient
	for i, row := range t.rows {
		id := field(row, loc)
		if f, err := strconv.ParseFloat(id, 64); err == nil && f == float64(int64(f)) {
			// pandas exports integer indices as "123.0"
			id = strconv.FormatInt(int64(f), 10)
		}
		for _, d := range domain.AllDurations() {
			mCol, okM := t.column(string(d) + "_m")
			bCol, okB := t.column(string(d) + "_b")
			if !okM || !okB || field(row, mCol) == "" || field(row, bCol) == "" {
				continue
			}
			m, err := strconv.ParseFloat(field(row, mCol), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s_m: %w", i+2, d, err)
			}
			b, err := strconv.ParseFloat(field(row, bCol), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s_b: %w", i+2, d, err)
			}
			out = append(out, domain.Coefficient{LocationID: id, Duration: d, M: m, B: b})
		}
	}
	return out, nil
}

// LoadCoefficients reads a TP108 table from disk.
func LoadCoefficients(path string) ([]domain.Coefficient, error) {
	var out []domain.Coefficient
	err := openFile(path, func(r io.Reader) error {
		var err error
		out, err = ReadCoefficients(r)
		return err
	})
	return out, err
}

// ReadAlarmLog parses the telemetry alarm export. Rows that cannot be parsed
// are returned as rowErrs and skipped; a missing required header is fatal.
func ReadAlarmLog(r io.Reader) (alarms []domain.AlarmRecord, rowErrs []error, err error) {
	t, err := readTable(r)
	if err != nil {
		return nil, nil, err
	}
	loc, err := t.require("location_id", "assetid", "asset_id")
	if err != nil {
		return nil, nil, err
	}
	id, err := t.require("alarm_id", "alertid", "alert_id")
	if err != nil {
		return nil, nil, err
	}
	created, err := t.require("created_time_utc", "createdtimeutc", "created_time")
	if err != nil {
		return nil, nil, err
	}
	desc, _ := t.column("description", "alarm_description")
	threshold, _ := t.column("threshold", "configured_threshold")
	scope, _ := t.column("scope")
	severity, _ := t.column("severity")
	dur, _ := t.column("duration_code")

	for i, row := range t.rows {
		line := i + 2
		ts, err := parseTime(field(row, created))
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		a := domain.AlarmRecord{
			LocationID:  field(row, loc),
			AlarmID:     field(row, id),
			Description: field(row, desc),
			Severity:    field(row, severity),
			CreatedTime: ts,
			Scope:       domain.ParseAlarmScope(field(row, scope)),
		}
		a.Kind = domain.ClassifyAlarm(a.Description)
		if v := field(row, threshold); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("line %d: invalid threshold %q", line, v))
				continue
			}
			a.Threshold = &f
		}
		if v := field(row, dur); v != "" {
			d, err := domain.ParseDuration(v)
			if err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("line %d: %w", line, err))
				continue
			}
			a.Duration = d
		}
		alarms = append(alarms, a)
	}
	return alarms, rowErrs, nil
}

// LoadAlarmLog reads the alarm log from disk.
func LoadAlarmLog(path string) ([]domain.AlarmRecord, []error, error) {
	var (
		alarms  []domain.AlarmRecord
		rowErrs []error
	)
	err := openFile(path, func(r io.Reader) error {
		var err error
		alarms, rowErrs, err = ReadAlarmLog(r)
		return err
	})
	return alarms, rowErrs, err
}

// ReadGauges parses the gauge list (location_id, name, lat, lon). Blank
// coordinates are kept as nil so the spatial rule can reject them.
func ReadGauges(r io.Reader) ([]domain.Gauge, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	loc, err := t.require("location_id", "trace_id", "id")
	if err != nil {
		return nil, err
	}
	name, _ := t.column("name", "gauge_name")
	lat, _ := t.column("lat", "latitude")
	lon, _ := t.column("lon", "lng", "longitude")

	out := make([]domain.Gauge, 0, len(t.rows))
	for i, row := range t.rows {
		g := domain.Gauge{LocationID: field(row, loc), Name: field(row, name)}
		if g.Lat, err = optionalFloat(field(row, lat)); err != nil {
			return nil, fmt.Errorf("line %d: invalid lat: %w", i+2, err)
		}
		if g.Lon, err = optionalFloat(field(row, lon)); err != nil {
			return nil, fmt.Errorf("line %d: invalid lon: %w", i+2, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// LoadGauges reads the gauge list from disk.
func LoadGauges(path string) ([]domain.Gauge, error) {
	var out []domain.Gauge
	err := openFile(path, func(r io.Reader) error {
		var err error
		out, err = ReadGauges(r)
		return err
	})
	return out, err
}

// ReadCatchments parses one row per (catchment, pixel) pair. The optional
// boundary column carries the catchment's WKT polygon.
func ReadCatchments(r io.Reader) ([]domain.Catchment, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	id, err := t.require("catchment_id")
	if err != nil {
		return nil, err
	}
	name, _ := t.column("name", "catchment_name")
	pixel, _ := t.column("pixel_id", "pixelindex", "pixel_index")
	boundary, _ := t.column("boundary", "wkt", "geometry_wkt")

	byID := make(map[string]*domain.Catchment)
	var order []string
	for _, row := range t.rows {
		cid := field(row, id)
		c, ok := byID[cid]
		if !ok {
			c = &domain.Catchment{ID: cid}
			byID[cid] = c
			order = append(order, cid)
		}
		if v := field(row, name); v != "" {
			c.Name = v
		}
		if v := field(row, boundary); v != "" {
			c.Boundary = v
		}
		if v := field(row, pixel); v != "" {
			c.Members = append(c.Members, v)
		}
	}

	out := make([]domain.Catchment, 0, len(order))
	for _, cid := range order {
		c := byID[cid]
		normalized := domain.NewCatchment(c.ID, c.Name, c.Members)
		normalized.Boundary = c.Boundary
		out = append(out, normalized)
	}
	return out, nil
}

// LoadCatchments reads the catchment membership table from disk.
func LoadCatchments(path string) ([]domain.Catchment, error) {
	var out []domain.Catchment
	err := openFile(path, func(r io.Reader) error {
		var err error
		out, err = ReadCatchments(r)
		return err
	})
	return out, err
}

// ReadSeries parses accumulated samples (location_id, timestamp, depth_mm,
// duration_code). Blank depths become NaN.
func ReadSeries(r io.Reader) ([]domain.RainfallSample, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	loc, err := t.require("location_id", "trace_id", "pixelindex")
	if err != nil {
		return nil, err
	}
	ts, err := t.require("timestamp", "time")
	if err != nil {
		return nil, err
	}
	depth, err := t.require("depth_mm", "value", "rainfall_mm")
	if err != nil {
		return nil, err
	}
	dur, err := t.require("duration_code", "duration")
	if err != nil {
		return nil, err
	}

	out := make([]domain.RainfallSample, 0, len(t.rows))
	for i, row := range t.rows {
		at, err := parseTime(field(row, ts))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		d, err := domain.ParseDuration(field(row, dur))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		v := math.NaN()
		if s := field(row, depth); s != "" {
			if v, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid depth: %w", i+2, err)
			}
		}
		out = append(out, domain.RainfallSample{LocationID: field(row, loc), Timestamp: at, DepthMM: v, Duration: d})
	}
	return out, nil
}

// LoadSeries reads accumulated samples from disk.
func LoadSeries(path string) ([]domain.RainfallSample, error) {
	var out []domain.RainfallSample
	err := openFile(path, func(r io.Reader) error {
		var err error
		out, err = ReadSeries(r)
		return err
	})
	return out, err
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
