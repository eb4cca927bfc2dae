package ari

import (
	"fmt"
	"sort"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// Accumulate turns raw rainfall increments sampled every interval into rolling
// totals for d. A total at time t covers (t-window, t] and is only emitted when
// every slot in that window holds a non-null increment. Input may mix
// locations; output is grouped by location and ordered by time.
func Accumulate(increments []domain.RainfallSample, interval time.Duration, d domain.Duration) ([]domain.RainfallSample, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("accumulation interval must be positive, got %s", interval)
	}
	window := d.Window()
	if window == 0 {
		return nil, fmt.Errorf("unknown duration code %q", d)
	}
	if window < interval || window%interval != 0 {
		return nil, fmt.Errorf("duration %s is not a multiple of the %s sample interval", d, interval)
	}
	slots := int(window / interval)

	byLocation := make(map[string][]domain.RainfallSample)
	var order []string
	for _, s := range increments {
		if _, ok := byLocation[s.LocationID]; !ok {
			order = append(order, s.LocationID)
		}
		byLocation[s.LocationID] = append(byLocation[s.LocationID], s)
	}
	sort.Strings(order)

	var out []domain.RainfallSample
	for _, loc := range order {
		out = append(out, rollingSum(byLocation[loc], window, slots, d)...)
	}
	return out, nil
}

func rollingSum(series []domain.RainfallSample, window time.Duration, slots int, d domain.Duration) []domain.RainfallSample {
	sorted := make([]domain.RainfallSample, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var (
		out   []domain.RainfallSample
		sum   float64
		valid int
		lo    int
	)
	for hi, s := range sorted {
		if !s.IsNull() {
			sum += s.DepthMM
			valid++
		}
		cutoff := s.Timestamp.Add(-window)
		for lo <= hi && !sorted[lo].Timestamp.After(cutoff) {
			if !sorted[lo].IsNull() {
				sum -= sorted[lo].DepthMM
				valid--
			}
			lo++
		}
		if valid < slots || hi-lo+1 != slots {
			continue
		}
		total := sum
		if total < 0 {
			// float drift after many subtractions
			total = 0
		}
		out = append(out, domain.RainfallSample{
			LocationID: s.LocationID,
			Timestamp:  s.Timestamp,
			DepthMM:    total,
			Duration:   d,
		})
	}
	return out
}
