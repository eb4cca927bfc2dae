// Package alarm corroborates telemetry alarms against computed ARI evidence.
package alarm

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// Window is the span around an alarm's creation time searched for evidence.
type Window struct {
	Before time.Duration
	After  time.Duration
}

// Evidence is everything known about the alarm's location. Missing is set when
// the source had no series for the location at all.
type Evidence struct {
	Missing  error
	ARI      []domain.ARIResult
	Coverage []domain.CatchmentCoverage
	Samples  []domain.RainfallSample
}

// Validator decides whether ARI evidence supports an alarm. It is pure: the
// same alarm and evidence always produce the same verdict.
type Validator struct {
	settings domain.Settings
}

// NewValidator creates a validator with thresholds from settings.
func NewValidator(settings domain.Settings) *Validator {
	return &Validator{settings: settings}
}

// DefaultWindow returns the configured evidence window.
func (v *Validator) DefaultWindow() Window {
	return Window{Before: v.settings.WindowBefore, After: v.settings.WindowAfter}
}

// EvidenceRange returns the time range a caller must fetch to validate a.
// Recency alarms look back far enough to see the last report before the alarm.
func (v *Validator) EvidenceRange(a domain.AlarmRecord, w Window) (start, end time.Time) {
	before := w.Before
	if kindOf(a) == domain.AlarmRecency && v.settings.RecencyAlarmAge > before {
		before = v.settings.RecencyAlarmAge
	}
	return a.CreatedTime.Add(-before), a.CreatedTime.Add(w.After)
}

// Validate produces the verdict for one alarm.
func (v *Validator) Validate(a domain.AlarmRecord, ev Evidence, w Window) domain.ValidationVerdict {
	verdict := domain.ValidationVerdict{
		AlarmID:     a.AlarmID,
		LocationID:  a.LocationID,
		WindowStart: a.CreatedTime.Add(-w.Before),
		WindowEnd:   a.CreatedTime.Add(w.After),
	}

	kind := kindOf(a)
	if kind == domain.AlarmUnknown {
		return unverifiable(verdict, fmt.Sprintf("unrecognized alarm kind for description %q", a.Description))
	}
	if a.LocationID == "" {
		return unverifiable(verdict, "alarm has no location")
	}
	if ev.Missing != nil {
		return unverifiable(verdict, fmt.Sprintf("location not found in source: %v", ev.Missing))
	}

	switch {
	case kind == domain.AlarmRecency:
		return v.validateRecency(verdict, a, ev)
	case a.Scope == domain.ScopeCatchment:
		return v.validateCatchment(verdict, a, ev.Coverage)
	default:
		return v.validateGauge(verdict, a, ev.ARI)
	}
}

func (v *Validator) validateGauge(verdict domain.ValidationVerdict, a domain.AlarmRecord, series []domain.ARIResult) domain.ValidationVerdict {
	verdict.Metric = domain.MetricARIYears
	verdict.Threshold = v.settings.ARIThresholdYears
	if a.Threshold != nil && *a.Threshold > 0 {
		verdict.Threshold = *a.Threshold
	}

	var observed []float64
	for _, r := range series {
		if r.LocationID != a.LocationID || !inWindow(r.Timestamp, verdict) {
			continue
		}
		if a.Duration != "" && r.Duration != a.Duration {
			continue
		}
		observed = append(observed, r.ARIYears)
	}
	if len(observed) == 0 {
		return unverifiable(verdict, "no data in window")
	}

	peak := floats.Max(observed)
	verdict.MaxObserved = &peak
	if peak >= verdict.Threshold {
		verdict.Status = domain.StatusSupported
	} else {
		verdict.Status = domain.StatusNotSupported
	}
	return verdict
}

func (v *Validator) validateCatchment(verdict domain.ValidationVerdict, a domain.AlarmRecord, coverage []domain.CatchmentCoverage) domain.ValidationVerdict {
	verdict.Metric = domain.MetricFractionExceeding
	verdict.Threshold = v.settings.SpatialProportionThreshold
	if a.Threshold != nil && *a.Threshold > 0 && *a.Threshold <= 1 {
		verdict.Threshold = *a.Threshold
	}

	var (
		fractions    []float64
		inWindowRows int
		lastReason   string
	)
	for _, c := range coverage {
		if c.CatchmentID != a.LocationID || !inWindow(c.Timestamp, verdict) {
			continue
		}
		if a.Duration != "" && c.Duration != a.Duration {
			continue
		}
		inWindowRows++
		if !c.Sufficient() {
			lastReason = c.Reason
			continue
		}
		fractions = append(fractions, *c.FractionExceeding)
	}
	if inWindowRows == 0 {
		return unverifiable(verdict, "no data in window")
	}
	if len(fractions) == 0 {
		return unverifiable(verdict, lastReason)
	}

	peak := floats.Max(fractions)
	verdict.MaxObserved = &peak
	if peak >= verdict.Threshold {
		verdict.Status = domain.StatusSupported
	} else {
		verdict.Status = domain.StatusNotSupported
	}
	return verdict
}

// validateRecency checks the claim that a location stopped reporting: the
// newest observation at or before the alarm must be at least the recency age old.
func (v *Validator) validateRecency(verdict domain.ValidationVerdict, a domain.AlarmRecord, ev Evidence) domain.ValidationVerdict {
	age := v.settings.RecencyAlarmAge
	if a.Threshold != nil && *a.Threshold > 0 {
		age = time.Duration(*a.Threshold * float64(time.Hour))
	}
	verdict.Metric = domain.MetricHoursSinceData
	verdict.Threshold = age.Hours()
	verdict.WindowStart = a.CreatedTime.Add(-age)

	var last time.Time
	observe := func(ts time.Time) {
		if !ts.After(a.CreatedTime) && ts.After(last) {
			last = ts
		}
	}
	for _, s := range ev.Samples {
		if s.LocationID == a.LocationID && !s.IsNull() {
			observe(s.Timestamp)
		}
	}
	for _, r := range ev.ARI {
		if r.LocationID == a.LocationID {
			observe(r.Timestamp)
		}
	}

	if last.IsZero() || a.CreatedTime.Sub(last) >= age {
		verdict.Status = domain.StatusSupported
		if last.IsZero() {
			verdict.Reason = fmt.Sprintf("no data in the %s before the alarm", age)
			return verdict
		}
		gap := a.CreatedTime.Sub(last).Hours()
		verdict.MaxObserved = &gap
		return verdict
	}

	gap := a.CreatedTime.Sub(last).Hours()
	verdict.MaxObserved = &gap
	verdict.Status = domain.StatusNotSupported
	return verdict
}

func kindOf(a domain.AlarmRecord) domain.AlarmKind {
	if a.Kind != "" {
		return a.Kind
	}
	return domain.ClassifyAlarm(a.Description)
}

func inWindow(ts time.Time, v domain.ValidationVerdict) bool {
	return !ts.Before(v.WindowStart) && !ts.After(v.WindowEnd)
}

func unverifiable(v domain.ValidationVerdict, reason string) domain.ValidationVerdict {
	v.Status = domain.StatusUnverifiable
	v.Reason = reason
	return v
}
