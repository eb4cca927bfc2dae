package domain

import (
	"regexp"
	"strings"
	"time"
)

// AlarmKind tags what an alarm claims happened.
type AlarmKind string

const (
	AlarmOverflow AlarmKind = "overflow"
	AlarmRecency  AlarmKind = "recency"
	AlarmUnknown  AlarmKind = "unknown"
)

// AlarmScope says whether an alarm targets a single gauge or a radar catchment.
type AlarmScope string

const (
	ScopeGauge     AlarmScope = "gauge"
	ScopeCatchment AlarmScope = "catchment"
)

// ParseAlarmScope maps free text to a scope, defaulting to gauge.
func ParseAlarmScope(s string) AlarmScope {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "catchment", "radar":
		return ScopeCatchment
	default:
		return ScopeGauge
	}
}

var (
	recencyPattern  = regexp.MustCompile(`(?i)\brecency\b|\bstale\b|\bno data\b`)
	overflowPattern = regexp.MustCompile(`(?i)max\s+tp108\s+ari|\bari\b|\boverflow\b`)
)

// ClassifyAlarm derives the alarm kind from its description. Recency is checked
// first because recency descriptions can mention the ARI trace they watch.
func ClassifyAlarm(description string) AlarmKind {
	switch {
	case recencyPattern.MatchString(description):
		return AlarmRecency
	case overflowPattern.MatchString(description):
		return AlarmOverflow
	default:
		return AlarmUnknown
	}
}

// AlarmRecord is one entry from the telemetry alarm log.
type AlarmRecord struct {
	LocationID  string     `json:"location_id"`
	AlarmID     string     `json:"alarm_id"`
	Description string     `json:"description"`
	Threshold   *float64   `json:"threshold,omitempty"`
	Severity    string     `json:"severity,omitempty"`
	CreatedTime time.Time  `json:"created_time"`
	Kind        AlarmKind  `json:"kind"`
	Scope       AlarmScope `json:"scope"`
	Duration    Duration   `json:"duration_code,omitempty"` // empty means any duration
}

// Status is the outcome of validating an alarm.
type Status string

const (
	StatusSupported    Status = "SUPPORTED"
	StatusNotSupported Status = "NOT_SUPPORTED"
	StatusUnverifiable Status = "UNVERIFIABLE"
)

// Metric names the quantity a verdict's MaxObserved holds.
const (
	MetricARIYears          = "ari_years"
	MetricFractionExceeding = "fraction_exceeding"
	MetricHoursSinceData    = "hours_since_data"
)

// ValidationVerdict is the decision recorded for one alarm. Reason is empty on
// SUPPORTED and NOT_SUPPORTED verdicts, except a recency alarm corroborated by
// the absence of any data.
type ValidationVerdict struct {
	AlarmID     string    `json:"alarm_id"`
	LocationID  string    `json:"location_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	MaxObserved *float64  `json:"max_ari_observed"`
	Threshold   float64   `json:"threshold"`
	Metric      string    `json:"metric"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason"`
}
