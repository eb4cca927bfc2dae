package ari

import (
	"math"
	"testing"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func increments(loc string, start time.Time, step time.Duration, depths ...float64) []domain.RainfallSample {
	out := make([]domain.RainfallSample, len(depths))
	for i, d := range depths {
		out[i] = domain.RainfallSample{LocationID: loc, Timestamp: start.Add(time.Duration(i) * step), DepthMM: d}
	}
	return out
}

func TestAccumulate_RollingSumRequiresFullWindow(t *testing.T) {
	in := increments("g1", ts, 5*time.Minute, 1, 2, 3, 4)

	out, err := Accumulate(in, 5*time.Minute, domain.Duration10m)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, ts.Add(5*time.Minute), out[0].Timestamp)
	assert.InDelta(t, 3.0, out[0].DepthMM, 1e-9)
	assert.InDelta(t, 5.0, out[1].DepthMM, 1e-9)
	assert.InDelta(t, 7.0, out[2].DepthMM, 1e-9)
	for _, s := range out {
		assert.Equal(t, domain.Duration10m, s.Duration)
		assert.Equal(t, "g1", s.LocationID)
	}
}

func TestAccumulate_NullOrGapBreaksWindow(t *testing.T) {
	in := increments("g1", ts, 5*time.Minute, 1, math.NaN(), 3, 4, 5)
	// drop the 4th slot so the series has a time gap
	in = append(in[:3], in[4:]...)

	out, err := Accumulate(in, 5*time.Minute, domain.Duration10m)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAccumulate_GroupsLocations(t *testing.T) {
	in := append(increments("g2", ts, 10*time.Minute, 1, 1, 1), increments("g1", ts, 10*time.Minute, 2, 2)...)

	out, err := Accumulate(in, 10*time.Minute, domain.Duration20m)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "g1", out[0].LocationID)
	assert.InDelta(t, 4.0, out[0].DepthMM, 1e-9)
	assert.Equal(t, "g2", out[1].LocationID)
}

func TestAccumulate_RejectsBadInterval(t *testing.T) {
	_, err := Accumulate(nil, 0, domain.Duration10m)
	assert.Error(t, err)
	_, err = Accumulate(nil, 7*time.Minute, domain.Duration10m)
	assert.Error(t, err)
	_, err = Accumulate(nil, 20*time.Minute, domain.Duration10m)
	assert.Error(t, err)
	_, err = Accumulate(nil, 5*time.Minute, "15m")
	assert.Error(t, err)
}
