package alarm

import (
	"sort"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// DefaultMaxGap joins exceedances no more than this far apart into one event.
const DefaultMaxGap = 15 * time.Minute

// ExceedanceEvent is a run of threshold exceedances at one location.
type ExceedanceEvent struct {
	LocationID   string          `json:"location_id"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	PeakARIYears float64         `json:"peak_ari_years"`
	PeakDuration domain.Duration `json:"peak_duration"`
	PeakTime     time.Time       `json:"peak_time"`
	Points       int             `json:"points"`
}

// FindExceedances returns the results at or above threshold, ordered by
// location then time.
func FindExceedances(series []domain.ARIResult, threshold float64) []domain.ARIResult {
	var out []domain.ARIResult
	for _, r := range series {
		if r.Exceeds(threshold) {
			out = append(out, r)
		}
	}
	sortByLocationTime(out)
	return out
}

// GroupConsecutive merges exceedances into events. Two exceedances at the same
// location belong to one event when they are at most maxGap apart. Events with
// fewer than minPoints exceedances are dropped.
func GroupConsecutive(exceedances []domain.ARIResult, maxGap time.Duration, minPoints int) []ExceedanceEvent {
	sorted := make([]domain.ARIResult, len(exceedances))
	copy(sorted, exceedances)
	sortByLocationTime(sorted)

	var (
		events  []ExceedanceEvent
		current *ExceedanceEvent
	)
	flush := func() {
		if current != nil && current.Points >= minPoints {
			events = append(events, *current)
		}
		current = nil
	}
	for _, r := range sorted {
		if current != nil && (r.LocationID != current.LocationID || r.Timestamp.Sub(current.End) > maxGap) {
			flush()
		}
		if current == nil {
			current = &ExceedanceEvent{LocationID: r.LocationID, Start: r.Timestamp}
		}
		current.End = r.Timestamp
		current.Points++
		if r.ARIYears > current.PeakARIYears {
			current.PeakARIYears = r.ARIYears
			current.PeakDuration = r.Duration
			current.PeakTime = r.Timestamp
		}
	}
	flush()
	return events
}

func sortByLocationTime(rs []domain.ARIResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].LocationID != rs[j].LocationID {
			return rs[i].LocationID < rs[j].LocationID
		}
		return rs[i].Timestamp.Before(rs[j].Timestamp)
	})
}
