package spatial

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// Peak summarizes results for member pixels of c. ok is false when no member
// pixel has a result.
func Peak(c domain.Catchment, results []domain.ARIResult, thresholdYears float64) (summary domain.PeakSummary, ok bool) {
	members := c.MemberSet()
	summary = domain.PeakSummary{CatchmentID: c.ID, PixelsTotal: len(members)}

	var (
		years     []float64
		matched   []domain.ARIResult
		pixelPeak = make(map[string]float64)
		exceeding = make(map[string]struct{})
	)
	for _, r := range results {
		if _, member := members[r.LocationID]; !member {
			continue
		}
		years = append(years, r.ARIYears)
		matched = append(matched, r)
		if prev, seen := pixelPeak[r.LocationID]; !seen || r.ARIYears > prev {
			pixelPeak[r.LocationID] = r.ARIYears
		}
		if r.ARIYears >= thresholdYears {
			summary.ExceedanceCount++
			exceeding[r.LocationID] = struct{}{}
		}
	}
	if len(years) == 0 {
		return summary, false
	}

	peak := matched[floats.MaxIdx(years)]
	summary.PeakARIYears = peak.ARIYears
	summary.PeakPixel = peak.LocationID
	summary.PeakDuration = peak.Duration
	summary.PeakTimestamp = peak.Timestamp
	summary.PeakDepthMM = peak.DepthMM

	peaks := make([]float64, 0, len(pixelPeak))
	for _, v := range pixelPeak {
		peaks = append(peaks, v)
	}
	// sorted so the mean is bit-for-bit reproducible
	sort.Float64s(peaks)
	summary.MeanPixelPeakYears = stat.Mean(peaks, nil)

	summary.PixelsWithExceeding = len(exceeding)
	if summary.PixelsTotal > 0 {
		summary.ProportionExceeding = float64(len(exceeding)) / float64(summary.PixelsTotal)
	}
	return summary, true
}

var binEdges = []struct {
	label        string
	lower, upper float64
}{
	{"0-1%", 0, 0.01},
	{"1-5%", 0.01, 0.05},
	{"5-10%", 0.05, 0.10},
	{"10-25%", 0.10, 0.25},
	{"25-50%", 0.25, 0.50},
	{"50-100%", 0.50, 1.0},
}

// ProportionBins histograms the sufficient coverage rows by fraction.
// Insufficient rows are not counted.
func ProportionBins(coverages []domain.CatchmentCoverage) []domain.ProportionBin {
	bins := make([]domain.ProportionBin, len(binEdges))
	for i, e := range binEdges {
		bins[i] = domain.ProportionBin{Label: e.label, Lower: e.lower, Upper: e.upper}
	}
	for _, c := range coverages {
		if !c.Sufficient() {
			continue
		}
		f := *c.FractionExceeding
		for i := range bins {
			last := i == len(bins)-1
			if f >= bins[i].Lower && (f < bins[i].Upper || (last && f <= bins[i].Upper)) {
				bins[i].Count++
				break
			}
		}
	}
	return bins
}
