package spatial

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2025, 5, 9, 3, 0, 0, 0, time.UTC)

func tenPixelCatchment() domain.Catchment {
	members := make([]string, 10)
	for i := range members {
		members[i] = fmt.Sprintf("p%02d", i)
	}
	return domain.NewCatchment("c1", "Oakley Creek", members)
}

// results builds one result per listed ARI, assigned to pixels p00, p01, ...
func results(d domain.Duration, at time.Time, aris ...float64) []domain.ARIResult {
	out := make([]domain.ARIResult, len(aris))
	for i, years := range aris {
		out[i] = domain.ARIResult{LocationID: fmt.Sprintf("p%02d", i), Duration: d, Timestamp: at, ARIYears: years}
	}
	return out
}

func TestAggregate_FractionOverReportingPixels(t *testing.T) {
	agg := NewAggregator(domain.DefaultSettings())

	cov, err := agg.Aggregate(tenPixelCatchment(), results(domain.Duration60m, ts, 6, 7, 5, 9, 1, 2, 3, 4, 0.5, 1), domain.Duration60m, ts, 5)
	require.NoError(t, err)

	require.True(t, cov.Sufficient())
	assert.InDelta(t, 0.4, *cov.FractionExceeding, 1e-12)
	assert.Equal(t, 10, cov.PixelsWithData)
	assert.Equal(t, 4, cov.PixelsExceeding)
	assert.Equal(t, 10, cov.PixelsTotal)
}

func TestAggregate_DenominatorExcludesMissingPixels(t *testing.T) {
	agg := NewAggregator(domain.DefaultSettings())

	cov, err := agg.Aggregate(tenPixelCatchment(), results(domain.Duration60m, ts, 6, 1, 1, 1, 1, 1), domain.Duration60m, ts, 5)
	require.NoError(t, err)

	require.True(t, cov.Sufficient())
	assert.InDelta(t, 1.0/6.0, *cov.FractionExceeding, 1e-12)
	assert.Equal(t, 6, cov.PixelsWithData)
}

func TestAggregate_BelowFloorWithholdsFraction(t *testing.T) {
	agg := NewAggregator(domain.DefaultSettings())

	cov, err := agg.Aggregate(tenPixelCatchment(), results(domain.Duration60m, ts, 20, 20, 20), domain.Duration60m, ts, 5)
	require.NoError(t, err)

	assert.False(t, cov.Sufficient())
	assert.Nil(t, cov.FractionExceeding)
	assert.Equal(t, 3, cov.PixelsWithData)
	assert.Contains(t, cov.Reason, "insufficient pixel coverage")
	assert.Contains(t, cov.Reason, "3/10")
}

func TestAggregate_FloorIsInclusive(t *testing.T) {
	agg := NewAggregator(domain.DefaultSettings())

	cov, err := agg.Aggregate(tenPixelCatchment(), results(domain.Duration60m, ts, 5, 1, 1, 1, 1), domain.Duration60m, ts, 5)
	require.NoError(t, err)

	require.True(t, cov.Sufficient())
	assert.InDelta(t, 0.2, *cov.FractionExceeding, 1e-12)
}

func TestAggregate_IgnoresOtherKeysAndNonMembers(t *testing.T) {
	agg := NewAggregator(domain.DefaultSettings())
	in := results(domain.Duration60m, ts, 9, 9, 9, 9, 9)
	in = append(in,
		domain.ARIResult{LocationID: "p05", Duration: domain.Duration10m, Timestamp: ts, ARIYears: 50},
		domain.ARIResult{LocationID: "p06", Duration: domain.Duration60m, Timestamp: ts.Add(time.Minute), ARIYears: 50},
		domain.ARIResult{LocationID: "stranger", Duration: domain.Duration60m, Timestamp: ts, ARIYears: 50},
	)

	cov, err := agg.Aggregate(tenPixelCatchment(), in, domain.Duration60m, ts, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cov.PixelsWithData)
	assert.InDelta(t, 1.0, *cov.FractionExceeding, 1e-12)
}

func TestAggregate_EmptyCatchmentIsFatal(t *testing.T) {
	agg := NewAggregator(domain.DefaultSettings())

	_, err := agg.Aggregate(domain.NewCatchment("c0", "", nil), nil, domain.Duration60m, ts, 5)
	assert.ErrorIs(t, err, domain.ErrEmptyCatchment)

	_, err = agg.AggregateAll(domain.NewCatchment("c0", "", nil), nil, 5)
	assert.ErrorIs(t, err, domain.ErrEmptyCatchment)
}

func TestAggregateAll_OrdersByDurationThenTime(t *testing.T) {
	agg := NewAggregator(domain.DefaultSettings())
	in := append(results(domain.Duration2h, ts, 1, 1, 1, 1, 1, 1), results(domain.Duration10m, ts.Add(10*time.Minute), 9, 9, 9, 9, 9, 9)...)
	in = append(in, results(domain.Duration10m, ts, 9, 1, 1, 1, 1, 1)...)

	got, err := agg.AggregateAll(tenPixelCatchment(), in, 5)
	require.NoError(t, err)

	type row struct {
		D  domain.Duration
		TS time.Time
		F  float64
	}
	var rows []row
	for _, c := range got {
		require.True(t, c.Sufficient())
		rows = append(rows, row{c.Duration, c.Timestamp, *c.FractionExceeding})
	}
	want := []row{
		{domain.Duration10m, ts, 1.0 / 6.0},
		{domain.Duration10m, ts.Add(10 * time.Minute), 1},
		{domain.Duration2h, ts, 0},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("coverage rows mismatch (-want +got):\n%s", diff)
	}
}
