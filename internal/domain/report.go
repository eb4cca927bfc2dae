package domain

import "time"

// Rejection records why a series or catchment was excluded from analysis.
type Rejection struct {
	LocationID string `json:"location_id"`
	Rule       string `json:"rule"`
	Reason     string `json:"reason"`
	Fatal      bool   `json:"fatal,omitempty"`
}

// SkipRecord counts samples the ARI engine could not evaluate.
type SkipRecord struct {
	LocationID string   `json:"location_id"`
	Duration   Duration `json:"duration_code"`
	Reason     string   `json:"reason"`
	Count      int      `json:"count"`
}

// Report is the complete output of one pipeline run.
type Report struct {
	RunID       string              `json:"run_id"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	ARIResults  []ARIResult         `json:"ari_results"`
	Coverage    []CatchmentCoverage `json:"coverage"`
	Verdicts    []ValidationVerdict `json:"verdicts"`
	Rejections  []Rejection         `json:"rejections"`
	Skipped     []SkipRecord        `json:"skipped"`
	Unprocessed []string            `json:"unprocessed,omitempty"`
	Cancelled   bool                `json:"cancelled,omitempty"`
	Summary     Summary             `json:"summary"`
}

// StatusCounts tallies verdicts by status.
func (r *Report) StatusCounts() map[Status]int {
	counts := map[Status]int{
		StatusSupported:    0,
		StatusNotSupported: 0,
		StatusUnverifiable: 0,
	}
	for _, v := range r.Verdicts {
		counts[v.Status]++
	}
	return counts
}

// PeakSummary describes the most extreme pixel result in a catchment over a
// whole analysis period.
type PeakSummary struct {
	CatchmentID         string    `json:"catchment_id"`
	PeakARIYears        float64   `json:"peak_ari_years"`
	PeakPixel           string    `json:"peak_pixel"`
	PeakDuration        Duration  `json:"peak_duration"`
	PeakTimestamp       time.Time `json:"peak_timestamp"`
	PeakDepthMM         float64   `json:"peak_depth_mm"`
	MeanPixelPeakYears  float64   `json:"mean_pixel_peak_years"`
	ExceedanceCount     int       `json:"exceedance_count"`
	PixelsWithExceeding int       `json:"pixels_with_exceedance"`
	PixelsTotal         int       `json:"pixels_total"`
	ProportionExceeding float64   `json:"proportion_exceeding"`
}

// ProportionBin counts coverage rows whose fraction falls in [Lower, Upper).
// The last bin includes its upper edge.
type ProportionBin struct {
	Label string  `json:"label"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// MatchSummary reports how many alarms coincide with computed exceedance events.
type MatchSummary struct {
	Alarms          int      `json:"alarms"`
	Matched         int      `json:"matched"`
	MissedAlarmIDs  []string `json:"missed_alarm_ids,omitempty"`
	UnalarmedEvents int      `json:"unalarmed_events"`
	MatchRate       float64  `json:"match_rate"`
}

// Summary holds the aggregate figures reported alongside the result tables.
type Summary struct {
	StatusCounts   map[Status]int  `json:"status_counts"`
	ProportionBins []ProportionBin `json:"proportion_bins,omitempty"`
	Peaks          []PeakSummary   `json:"catchment_peaks,omitempty"`
	Matching       *MatchSummary   `json:"alarm_matching,omitempty"`
	ExceedanceRuns int             `json:"exceedance_events"`
}
