// Package spatial reduces per-pixel ARI results to catchment-level coverage.
package spatial

import (
	"fmt"
	"sort"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// Aggregator computes the share of reporting catchment pixels that exceed an
// ARI threshold.
type Aggregator struct {
	floor float64
}

// NewAggregator creates an aggregator using the coverage floor from settings.
func NewAggregator(settings domain.Settings) *Aggregator {
	return &Aggregator{floor: settings.CoverageFloor}
}

// Aggregate evaluates one (duration, timestamp) slice for a catchment. Pixels
// without a result at that key count as not reporting. When the share of
// reporting pixels is below the floor the returned coverage has a nil fraction
// and a reason; that is not an error.
func (a *Aggregator) Aggregate(c domain.Catchment, results []domain.ARIResult, d domain.Duration, ts time.Time, thresholdYears float64) (domain.CatchmentCoverage, error) {
	if len(c.Members) == 0 {
		return domain.CatchmentCoverage{}, fmt.Errorf("aggregate catchment %s: %w", c.ID, domain.ErrEmptyCatchment)
	}

	members := c.MemberSet()
	perPixel := make(map[string]float64, len(members))
	for _, r := range results {
		if r.Duration != d || !r.Timestamp.Equal(ts) {
			continue
		}
		if _, ok := members[r.LocationID]; !ok {
			continue
		}
		if prev, seen := perPixel[r.LocationID]; !seen || r.ARIYears > prev {
			perPixel[r.LocationID] = r.ARIYears
		}
	}

	return a.coverage(c, len(members), perPixel, d, ts, thresholdYears), nil
}

// AggregateAll returns one coverage row per distinct (duration, timestamp)
// found among the catchment's member results, ordered by duration then time.
func (a *Aggregator) AggregateAll(c domain.Catchment, results []domain.ARIResult, thresholdYears float64) ([]domain.CatchmentCoverage, error) {
	if len(c.Members) == 0 {
		return nil, fmt.Errorf("aggregate catchment %s: %w", c.ID, domain.ErrEmptyCatchment)
	}

	members := c.MemberSet()
	type sliceKey struct {
		d  domain.Duration
		ts int64
	}
	slices := make(map[sliceKey]map[string]float64)
	stamps := make(map[sliceKey]time.Time)
	for _, r := range results {
		if _, ok := members[r.LocationID]; !ok {
			continue
		}
		k := sliceKey{r.Duration, r.Timestamp.UnixNano()}
		perPixel, ok := slices[k]
		if !ok {
			perPixel = make(map[string]float64)
			slices[k] = perPixel
			stamps[k] = r.Timestamp
		}
		if prev, seen := perPixel[r.LocationID]; !seen || r.ARIYears > prev {
			perPixel[r.LocationID] = r.ARIYears
		}
	}

	keys := make([]sliceKey, 0, len(slices))
	for k := range slices {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].d != keys[j].d {
			return keys[i].d.Order() < keys[j].d.Order()
		}
		return keys[i].ts < keys[j].ts
	})

	out := make([]domain.CatchmentCoverage, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.coverage(c, len(members), slices[k], k.d, stamps[k], thresholdYears))
	}
	return out, nil
}

func (a *Aggregator) coverage(c domain.Catchment, total int, perPixel map[string]float64, d domain.Duration, ts time.Time, threshold float64) domain.CatchmentCoverage {
	cov := domain.CatchmentCoverage{
		CatchmentID:    c.ID,
		Duration:       d,
		Timestamp:      ts,
		PixelsWithData: len(perPixel),
		PixelsTotal:    total,
	}
	for _, years := range perPixel {
		if years >= threshold {
			cov.PixelsExceeding++
		}
	}

	if float64(cov.PixelsWithData) < a.floor*float64(total) || cov.PixelsWithData == 0 {
		cov.Reason = (&domain.InsufficientCoverageError{
			CatchmentID:    c.ID,
			PixelsWithData: cov.PixelsWithData,
			PixelsTotal:    total,
			Floor:          a.floor,
		}).Error()
		return cov
	}

	fraction := float64(cov.PixelsExceeding) / float64(cov.PixelsWithData)
	cov.FractionExceeding = &fraction
	return cov
}
