package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/alarm"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/ari"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/observability"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/pipeline"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/quality"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/spatial"
)

var (
	alarmTime = time.Date(2025, 5, 9, 3, 0, 0, 0, time.UTC)
	now       = time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
)

// fakeSource serves in-memory series. Unknown ids fail like a real source.
type fakeSource struct {
	mu      sync.Mutex
	series  map[string][]domain.RainfallSample
	members map[string][]string
	errs    map[string]error
	calls   int
	onFetch func(locationID string)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		series:  make(map[string][]domain.RainfallSample),
		members: make(map[string][]string),
		errs:    make(map[string]error),
	}
}

func (f *fakeSource) GetSeries(ctx context.Context, locationID string, d domain.Duration, start, end time.Time) ([]domain.RainfallSample, error) {
	f.mu.Lock()
	f.calls++
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(locationID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[locationID]; ok {
		return nil, err
	}
	samples, ok := f.series[locationID]
	if !ok {
		return nil, &domain.SourceError{Op: "get series " + locationID, Err: domain.ErrUnknownLocation}
	}
	var out []domain.RainfallSample
	for _, s := range samples {
		if s.Duration != d {
			continue
		}
		if !start.IsZero() && s.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSource) GetCatchmentMembership(_ context.Context, catchmentID string) ([]string, error) {
	members, ok := f.members[catchmentID]
	if !ok {
		return nil, &domain.SourceError{Op: "get membership " + catchmentID, Err: domain.ErrUnknownLocation}
	}
	return members, nil
}

// hourly builds 5-minute 60m samples covering the hour either side of the
// alarm time. peak, when positive, replaces the depth at the alarm time.
func hourly(locationID string, base, peak float64) []domain.RainfallSample {
	var out []domain.RainfallSample
	for i := range 24 {
		ts := alarmTime.Add(-time.Hour + time.Duration(i)*5*time.Minute)
		depth := base
		if peak > 0 && ts.Equal(alarmTime) {
			depth = peak
		}
		out = append(out, domain.RainfallSample{LocationID: locationID, Timestamp: ts, DepthMM: depth, Duration: domain.Duration60m})
	}
	return out
}

// coefficient gives 50 mm over 60 minutes an ARI of about 31.5 years and
// 2 mm about 3.6 years.
func coefficient(locationID string) domain.Coefficient {
	return domain.Coefficient{LocationID: locationID, Duration: domain.Duration60m, M: 0.045, B: 1.2}
}

func testSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.Durations = []domain.Duration{domain.Duration60m}
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func newPipeline(t *testing.T, src pipeline.Source, locations ...string) *pipeline.Pipeline {
	t.Helper()
	settings := testSettings()

	rows := make([]domain.Coefficient, len(locations))
	for i, id := range locations {
		rows[i] = coefficient(id)
	}
	table, err := ari.NewCoefficientTable(rows)
	require.NoError(t, err)
	filter, err := quality.NewFilter(settings)
	require.NoError(t, err)

	return pipeline.New(
		src,
		ari.NewEngine(table, settings),
		spatial.NewAggregator(settings),
		alarm.NewValidator(settings),
		filter,
		settings,
		discardLogger(),
		observability.NewMetricsForTesting(),
	)
}

func aucklandGauge(id string) domain.Gauge {
	lat, lon := -36.85, 174.76
	return domain.Gauge{LocationID: id, Name: "Gauge " + id, Lat: &lat, Lon: &lon}
}

func overflowAlarm(id, location string) domain.AlarmRecord {
	return domain.AlarmRecord{
		AlarmID:     id,
		LocationID:  location,
		Description: "Max TP108 ARI",
		CreatedTime: alarmTime,
		Kind:        domain.AlarmOverflow,
		Scope:       domain.ScopeGauge,
	}
}

func catchmentAlarm(id, catchment string) domain.AlarmRecord {
	a := overflowAlarm(id, catchment)
	a.Scope = domain.ScopeCatchment
	return a
}

// recordingSink keeps every report it is given.
type recordingSink struct {
	mu      sync.Mutex
	name    string
	err     error
	reports []*domain.Report
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, r *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}
