package ari

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2025, 5, 9, 3, 0, 0, 0, time.UTC)

func testTable(t *testing.T, rows ...domain.Coefficient) *CoefficientTable {
	t.Helper()
	table, err := NewCoefficientTable(rows)
	require.NoError(t, err)
	return table
}

func TestComputeARI_KnownValue(t *testing.T) {
	c := domain.Coefficient{LocationID: "g1", Duration: domain.Duration60m, M: 0.045, B: 1.2}

	years, inRange, err := ComputeARI(50, c, 1000)
	require.NoError(t, err)
	assert.True(t, inRange)
	assert.InDelta(t, 31.5, years, 0.1)
	assert.InDelta(t, math.Exp(3.45), years, 1e-9)
}

func TestComputeARI_ZeroDepthYieldsExpB(t *testing.T) {
	for _, b := range []float64{-2, 0, 0.7, 1.2} {
		c := domain.Coefficient{LocationID: "g1", Duration: domain.Duration10m, M: 0.1, B: b}
		years, _, err := ComputeARI(0, c, 1000)
		require.NoError(t, err)
		assert.InDelta(t, math.Exp(b), years, 1e-12)
	}
}

func TestComputeARI_MonotoneInDepth(t *testing.T) {
	c := domain.Coefficient{LocationID: "g1", Duration: domain.Duration2h, M: 0.03, B: 0.4}
	prev := 0.0
	for depth := 0.0; depth <= 400; depth += 2.5 {
		years, _, err := ComputeARI(depth, c, 1000)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, years, prev, "depth %g", depth)
		assert.Greater(t, years, 0.0)
		assert.LessOrEqual(t, years, 1000.0)
		prev = years
	}
}

func TestComputeARI_ClampsAboveCeiling(t *testing.T) {
	c := domain.Coefficient{LocationID: "g1", Duration: domain.Duration10m, M: 0.2, B: 1}

	years, inRange, err := ComputeARI(300, c, 1000)
	require.NoError(t, err)
	assert.False(t, inRange)
	assert.InDelta(t, 1000.0, years, 1e-9)
}

func TestComputeARI_InvalidDepth(t *testing.T) {
	c := domain.Coefficient{LocationID: "g1", Duration: domain.Duration10m, M: 0.1, B: 1}
	for _, depth := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		_, _, err := ComputeARI(depth, c, 1000)
		var invalid *domain.InvalidSampleError
		assert.True(t, errors.As(err, &invalid), "depth %g", depth)
	}
}

func TestDepthForARI_InvertsCompute(t *testing.T) {
	c := domain.Coefficient{LocationID: "g1", Duration: domain.Duration6h, M: 0.021, B: 0.9}
	for _, target := range []float64{2, 5, 10, 100} {
		depth, err := DepthForARI(target, c)
		require.NoError(t, err)
		years, _, err := ComputeARI(depth, c, 1000)
		require.NoError(t, err)
		assert.InDelta(t, target, years, 1e-9)
	}

	_, err := DepthForARI(0, c)
	assert.Error(t, err)
	_, err = DepthForARI(5, domain.Coefficient{M: 0})
	assert.Error(t, err)
}

func TestEngine_Compute_MissingCoefficient(t *testing.T) {
	e := NewEngine(testTable(t), domain.DefaultSettings())

	_, err := e.Compute(domain.RainfallSample{LocationID: "nowhere", Duration: domain.Duration10m, Timestamp: ts, DepthMM: 3})
	var missing *domain.MissingCoefficientError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nowhere", missing.LocationID)
	assert.Equal(t, domain.Duration10m, missing.Duration)
}

func TestEngine_Compute_Idempotent(t *testing.T) {
	e := NewEngine(testTable(t, domain.Coefficient{LocationID: "g1", Duration: domain.Duration30m, M: 0.05, B: 0.5}), domain.DefaultSettings())
	s := domain.RainfallSample{LocationID: "g1", Duration: domain.Duration30m, Timestamp: ts, DepthMM: 22}

	first, err := e.Compute(s)
	require.NoError(t, err)
	second, err := e.Compute(s)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngine_ComputeBatch_SkipsAndCounts(t *testing.T) {
	table := testTable(t,
		domain.Coefficient{LocationID: "g1", Duration: domain.Duration10m, M: 0.1, B: 0.5},
	)
	e := NewEngine(table, domain.DefaultSettings())

	samples := []domain.RainfallSample{
		{LocationID: "g1", Duration: domain.Duration10m, Timestamp: ts, DepthMM: 5},
		{LocationID: "g1", Duration: domain.Duration20m, Timestamp: ts, DepthMM: 5},
		{LocationID: "g1", Duration: domain.Duration10m, Timestamp: ts.Add(5 * time.Minute), DepthMM: math.NaN()},
		{LocationID: "g1", Duration: domain.Duration10m, Timestamp: ts.Add(10 * time.Minute), DepthMM: 7},
		{LocationID: "g2", Duration: domain.Duration10m, Timestamp: ts, DepthMM: 1},
	}

	batch := e.ComputeBatch(samples)
	results := batch.Collect()

	require.Len(t, results, 2)
	assert.Equal(t, ts, results[0].Timestamp)
	assert.Equal(t, ts.Add(10*time.Minute), results[1].Timestamp)
	assert.Equal(t, 3, batch.SkippedTotal())
	assert.Equal(t, []domain.SkipRecord{
		{LocationID: "g1", Duration: domain.Duration10m, Reason: "null depth", Count: 1},
		{LocationID: "g1", Duration: domain.Duration20m, Reason: "missing coefficient", Count: 1},
		{LocationID: "g2", Duration: domain.Duration10m, Reason: "missing coefficient", Count: 1},
	}, batch.Skipped())
}

func TestEngine_ComputeBatch_SinglePass(t *testing.T) {
	e := NewEngine(testTable(t, domain.Coefficient{LocationID: "g1", Duration: domain.Duration10m, M: 0.1, B: 0.5}), domain.DefaultSettings())
	batch := e.ComputeBatch([]domain.RainfallSample{
		{LocationID: "g1", Duration: domain.Duration10m, Timestamp: ts, DepthMM: 5},
	})

	assert.Len(t, batch.Collect(), 1)
	assert.Empty(t, batch.Collect())
}

func TestEngine_ComputeBatch_EarlyStop(t *testing.T) {
	e := NewEngine(testTable(t, domain.Coefficient{LocationID: "g1", Duration: domain.Duration10m, M: 0.1, B: 0.5}), domain.DefaultSettings())
	samples := make([]domain.RainfallSample, 10)
	for i := range samples {
		samples[i] = domain.RainfallSample{LocationID: "g1", Duration: domain.Duration10m, Timestamp: ts.Add(time.Duration(i) * time.Minute), DepthMM: float64(i)}
	}

	n := 0
	for range e.ComputeBatch(samples).Results() {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}
