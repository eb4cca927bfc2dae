// Package quality decides which rainfall series are trustworthy enough to analyse.
package quality

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// Rule names recorded on rejections.
const (
	RuleTemporalCoverage = "temporal_coverage"
	RuleRecency          = "recency"
	RuleValueRange       = "value_range"
	RuleSpatialValidity  = "spatial_validity"
	RulePixelCoverage    = "pixel_coverage"
)

// SeriesKind distinguishes gauge series from radar pixel series.
type SeriesKind string

const (
	KindGauge SeriesKind = "gauge"
	KindRadar SeriesKind = "radar"
)

// Series is one location's samples over a requested window. Start and End may
// be zero, in which case temporal coverage is measured against the samples
// actually returned.
type Series struct {
	LocationID string
	Kind       SeriesKind
	Gauge      *domain.Gauge
	Samples    []domain.RainfallSample
	Start      time.Time
	End        time.Time
}

// Accepted is a series that passed every rule. Clean holds the samples that
// survived value-range screening; Raw is the untouched input.
type Accepted struct {
	LocationID string
	Raw        []domain.RainfallSample
	Clean      []domain.RainfallSample
}

// SampleRejection records one sample excluded as a sensor error.
type SampleRejection struct {
	LocationID string    `json:"location_id"`
	Timestamp  time.Time `json:"timestamp"`
	DepthMM    float64   `json:"depth_mm"`
	Reason     string    `json:"reason"`
}

// Outcome is the result of filtering a set of series.
type Outcome struct {
	Accepted        []Accepted
	Rejections      []domain.Rejection
	ExcludedSamples []SampleRejection
}

// Rule is one independent quality check over a series and its cleaned samples.
type Rule interface {
	Name() string
	Check(s Series, clean []domain.RainfallSample) (ok bool, reason string)
}

// Filter applies the quality rules. It never mutates its input.
type Filter struct {
	settings domain.Settings
	rules    []Rule
}

// NewFilter builds the rule chain from settings.
func NewFilter(settings domain.Settings) (*Filter, error) {
	var exclude *regexp.Regexp
	if settings.GaugeExcludePattern != "" {
		re, err := regexp.Compile("(?i)" + settings.GaugeExcludePattern)
		if err != nil {
			return nil, fmt.Errorf("compile gauge exclude pattern: %w", err)
		}
		exclude = re
	}
	return &Filter{
		settings: settings,
		rules: []Rule{
			temporalCoverageRule{min: settings.TemporalCoverageMin, interval: settings.SampleInterval},
			recencyRule{months: settings.InactiveThresholdMonths},
			spatialRule{box: settings.BoundingBox, exclude: exclude},
		},
	}, nil
}

// Apply filters every series independently.
func (f *Filter) Apply(series []Series) Outcome {
	var out Outcome
	for _, s := range series {
		accepted, rejections, excluded := f.Check(s)
		out.ExcludedSamples = append(out.ExcludedSamples, excluded...)
		if len(rejections) > 0 {
			out.Rejections = append(out.Rejections, rejections...)
			continue
		}
		out.Accepted = append(out.Accepted, accepted)
	}
	return out
}

// Check runs all rules against one series. The series is accepted only when
// rejections is empty.
func (f *Filter) Check(s Series) (accepted Accepted, rejections []domain.Rejection, excluded []SampleRejection) {
	clean, excluded := f.screenValues(s)

	for _, rule := range f.rules {
		if ok, reason := rule.Check(s, clean); !ok {
			rejections = append(rejections, domain.Rejection{LocationID: s.LocationID, Rule: rule.Name(), Reason: reason})
		}
	}
	return Accepted{LocationID: s.LocationID, Raw: s.Samples, Clean: clean}, rejections, excluded
}

// CheckPixelCoverage returns a rejection when too few catchment pixels reported.
func (f *Filter) CheckPixelCoverage(catchmentID string, withData, total int) *domain.Rejection {
	if total > 0 && float64(withData) >= f.settings.CoverageFloor*float64(total) && withData > 0 {
		return nil
	}
	err := &domain.InsufficientCoverageError{CatchmentID: catchmentID, PixelsWithData: withData, PixelsTotal: total, Floor: f.settings.CoverageFloor}
	return &domain.Rejection{LocationID: catchmentID, Rule: RulePixelCoverage, Reason: err.Error()}
}

// screenValues splits out samples outside the plausible depth range. Null
// samples are dropped from the clean set without being reported.
func (f *Filter) screenValues(s Series) ([]domain.RainfallSample, []SampleRejection) {
	clean := make([]domain.RainfallSample, 0, len(s.Samples))
	var excluded []SampleRejection
	for _, sample := range s.Samples {
		if sample.IsNull() {
			continue
		}
		if sample.DepthMM < f.settings.MinDepthMM || sample.DepthMM > f.settings.MaxDepthMM {
			err := &domain.InvalidSampleError{
				LocationID: s.LocationID,
				DepthMM:    sample.DepthMM,
				Reason:     fmt.Sprintf("outside [%g, %g] mm", f.settings.MinDepthMM, f.settings.MaxDepthMM),
			}
			excluded = append(excluded, SampleRejection{LocationID: s.LocationID, Timestamp: sample.Timestamp, DepthMM: sample.DepthMM, Reason: err.Error()})
			continue
		}
		clean = append(clean, sample)
	}
	sort.SliceStable(clean, func(i, j int) bool { return clean[i].Timestamp.Before(clean[j].Timestamp) })
	return clean, excluded
}

type temporalCoverageRule struct {
	min      float64
	interval time.Duration
}

func (temporalCoverageRule) Name() string { return RuleTemporalCoverage }

func (r temporalCoverageRule) Check(s Series, clean []domain.RainfallSample) (bool, string) {
	expected := len(s.Samples)
	valid := len(clean)
	if !s.Start.IsZero() && s.End.After(s.Start) {
		expected = int(s.End.Sub(s.Start) / r.interval)
		valid = 0
		for _, c := range clean {
			if !c.Timestamp.Before(s.Start) && !c.Timestamp.After(s.End) {
				valid++
			}
		}
	}
	if expected <= 0 {
		return false, "no samples in requested window"
	}
	coverage := float64(valid) / float64(expected)
	if coverage > 1 {
		coverage = 1
	}
	if coverage < r.min {
		return false, fmt.Sprintf("temporal coverage %.1f%% below %.0f%% minimum (%d/%d samples valid)", 100*coverage, 100*r.min, valid, expected)
	}
	return true, ""
}

type recencyRule struct {
	months int
}

func (recencyRule) Name() string { return RuleRecency }

func (r recencyRule) Check(_ Series, clean []domain.RainfallSample) (bool, string) {
	if len(clean) == 0 {
		return false, "no valid data"
	}
	latest := clean[len(clean)-1].Timestamp
	cutoff := domain.Now().AddDate(0, -r.months, 0)
	if latest.Before(cutoff) {
		return false, fmt.Sprintf("inactive: last data %s is older than %d months", latest.Format(time.DateOnly), r.months)
	}
	return true, ""
}

type spatialRule struct {
	box     domain.BoundingBox
	exclude *regexp.Regexp
}

func (spatialRule) Name() string { return RuleSpatialValidity }

func (r spatialRule) Check(s Series, _ []domain.RainfallSample) (bool, string) {
	// Locations with no gauge record (alarm-only ids) carry no metadata to screen.
	if s.Kind != KindGauge || s.Gauge == nil {
		return true, ""
	}
	g := s.Gauge
	if g.Lat == nil || g.Lon == nil {
		return false, "gauge has no coordinates"
	}
	if !r.box.Contains(*g.Lat, *g.Lon) {
		return false, fmt.Sprintf("gauge at (%.4f, %.4f) is outside the analysis region", *g.Lat, *g.Lon)
	}
	if r.exclude != nil && r.exclude.MatchString(g.Name) {
		return false, fmt.Sprintf("gauge name %q matches excluded region pattern", g.Name)
	}
	return true, ""
}

// AsRejection converts an excluded sample into a rejection row.
func (r SampleRejection) AsRejection() domain.Rejection {
	return domain.Rejection{
		LocationID: r.LocationID,
		Rule:       RuleValueRange,
		Reason:     fmt.Sprintf("sample at %s excluded: %s", r.Timestamp.Format(time.RFC3339), r.Reason),
	}
}
