package alarm

import (
	"testing"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(loc string, offset time.Duration, years float64) domain.ARIResult {
	return domain.ARIResult{LocationID: loc, Duration: domain.Duration10m, Timestamp: created.Add(offset), ARIYears: years}
}

func TestFindExceedances(t *testing.T) {
	series := []domain.ARIResult{
		at("g2", 0, 7),
		at("g1", 10*time.Minute, 5),
		at("g1", 0, 4.99),
		at("g1", -10*time.Minute, 12),
	}

	got := FindExceedances(series, 5)

	require.Len(t, got, 3)
	assert.Equal(t, "g1", got[0].LocationID)
	assert.Equal(t, created.Add(-10*time.Minute), got[0].Timestamp)
	assert.Equal(t, created.Add(10*time.Minute), got[1].Timestamp)
	assert.Equal(t, "g2", got[2].LocationID)
}

func TestGroupConsecutive(t *testing.T) {
	ex := []domain.ARIResult{
		at("g1", 0, 6),
		at("g1", 10*time.Minute, 9),
		at("g1", 25*time.Minute, 7),
		at("g1", 60*time.Minute, 8),
		at("g2", 5*time.Minute, 5),
	}

	events := GroupConsecutive(ex, DefaultMaxGap, 1)

	require.Len(t, events, 3)
	assert.Equal(t, ExceedanceEvent{
		LocationID:   "g1",
		Start:        created,
		End:          created.Add(25 * time.Minute),
		PeakARIYears: 9,
		PeakDuration: domain.Duration10m,
		PeakTime:     created.Add(10 * time.Minute),
		Points:       3,
	}, events[0])
	assert.Equal(t, created.Add(time.Hour), events[1].Start)
	assert.Equal(t, "g2", events[2].LocationID)

	assert.Len(t, GroupConsecutive(ex, DefaultMaxGap, 2), 1)
}
