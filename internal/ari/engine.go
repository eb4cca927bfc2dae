package ari

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"
	"sync/atomic"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// ComputeARI evaluates exp(m*depth + b). Results above maxYears are clamped to
// it, and an underflow to zero is clamped to the smallest positive float; both
// clamps report inRange=false.
func ComputeARI(depth float64, c domain.Coefficient, maxYears float64) (years float64, inRange bool, err error) {
	if math.IsNaN(depth) || math.IsInf(depth, 0) {
		return 0, false, &domain.InvalidSampleError{LocationID: c.LocationID, DepthMM: depth, Reason: "depth is not a number"}
	}
	if depth < 0 {
		return 0, false, &domain.InvalidSampleError{LocationID: c.LocationID, DepthMM: depth, Reason: "negative depth"}
	}

	years = math.Exp(c.M*depth + c.B)
	switch {
	case math.IsNaN(years):
		return 0, false, &domain.InvalidSampleError{LocationID: c.LocationID, DepthMM: depth, Reason: "ARI is not a number"}
	case years > maxYears:
		return maxYears, false, nil
	case years <= 0:
		return math.SmallestNonzeroFloat64, false, nil
	}
	return years, true, nil
}

// DepthForARI inverts the TP108 relationship: the depth that produces the
// target recurrence interval.
func DepthForARI(targetYears float64, c domain.Coefficient) (float64, error) {
	if targetYears <= 0 {
		return 0, fmt.Errorf("target ARI must be positive, got %g", targetYears)
	}
	if c.M == 0 {
		return 0, fmt.Errorf("coefficient m is zero for location %s duration %s", c.LocationID, c.Duration)
	}
	return (math.Log(targetYears) - c.B) / c.M, nil
}

// Engine converts depths to recurrence intervals using a coefficient table.
type Engine struct {
	table    *CoefficientTable
	maxYears float64
}

// NewEngine creates an engine bound to a table and the clamp ceiling from settings.
func NewEngine(table *CoefficientTable, settings domain.Settings) *Engine {
	return &Engine{table: table, maxYears: settings.MaxARIYears}
}

// Compute returns the ARI for one sample.
func (e *Engine) Compute(s domain.RainfallSample) (domain.ARIResult, error) {
	c, err := e.table.Lookup(s.LocationID, s.Duration)
	if err != nil {
		return domain.ARIResult{}, err
	}
	if s.IsNull() {
		return domain.ARIResult{}, &domain.InvalidSampleError{LocationID: s.LocationID, DepthMM: s.DepthMM, Reason: "null depth"}
	}
	years, inRange, err := ComputeARI(s.DepthMM, c, e.maxYears)
	if err != nil {
		return domain.ARIResult{}, err
	}
	return domain.ARIResult{
		LocationID: s.LocationID,
		Duration:   s.Duration,
		Timestamp:  s.Timestamp,
		DepthMM:    s.DepthMM,
		ARIYears:   years,
		OutOfRange: !inRange,
	}, nil
}

// ComputeBatch returns a lazy, single-pass sequence of results for samples.
// Samples that cannot be evaluated are skipped and tallied on the Batch.
func (e *Engine) ComputeBatch(samples []domain.RainfallSample) *Batch {
	return &Batch{engine: e, samples: samples, skipped: make(map[skipKey]int)}
}

// Batch is the result of ComputeBatch. Results may be ranged over once;
// later iterations yield nothing.
type Batch struct {
	engine   *Engine
	samples  []domain.RainfallSample
	consumed atomic.Bool
	skipped  map[skipKey]int
}

type skipKey struct {
	locationID string
	duration   domain.Duration
	reason     string
}

// Results yields one ARIResult per evaluable sample, in input order.
func (b *Batch) Results() iter.Seq[domain.ARIResult] {
	return func(yield func(domain.ARIResult) bool) {
		if !b.consumed.CompareAndSwap(false, true) {
			return
		}
		for _, s := range b.samples {
			r, err := b.engine.Compute(s)
			if err != nil {
				b.skipped[skipKey{s.LocationID, s.Duration, skipReason(err)}]++
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Collect drains the batch into a slice.
func (b *Batch) Collect() []domain.ARIResult {
	out := make([]domain.ARIResult, 0, len(b.samples))
	for r := range b.Results() {
		out = append(out, r)
	}
	return out
}

// Skipped reports how many samples were skipped per location, duration and
// reason. It is complete only after Results has been fully consumed.
func (b *Batch) Skipped() []domain.SkipRecord {
	out := make([]domain.SkipRecord, 0, len(b.skipped))
	for k, n := range b.skipped {
		out = append(out, domain.SkipRecord{LocationID: k.locationID, Duration: k.duration, Reason: k.reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationID != out[j].LocationID {
			return out[i].LocationID < out[j].LocationID
		}
		if out[i].Duration != out[j].Duration {
			return out[i].Duration.Order() < out[j].Duration.Order()
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// SkippedTotal returns the total number of skipped samples.
func (b *Batch) SkippedTotal() int {
	n := 0
	for _, c := range b.skipped {
		n += c
	}
	return n
}

func skipReason(err error) string {
	var missing *domain.MissingCoefficientError
	if errors.As(err, &missing) {
		return "missing coefficient"
	}
	var invalid *domain.InvalidSampleError
	if errors.As(err, &invalid) {
		return invalid.Reason
	}
	return err.Error()
}
