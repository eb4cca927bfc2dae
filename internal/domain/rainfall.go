package domain

import (
	"math"
	"time"
)

// RainfallSample is one accumulated depth for a location and duration.
// DepthMM is NaN when the source reported no value.
type RainfallSample struct {
	LocationID string    `json:"location_id"`
	Timestamp  time.Time `json:"timestamp"`
	DepthMM    float64   `json:"depth_mm"`
	Duration   Duration  `json:"duration_code"`
}

// IsNull reports whether the sample carries no usable depth.
func (s RainfallSample) IsNull() bool {
	return math.IsNaN(s.DepthMM) || math.IsInf(s.DepthMM, 0)
}

// Coefficient is a TP108 (m, b) pair for one location and duration.
type Coefficient struct {
	LocationID string   `json:"location_id"`
	Duration   Duration `json:"duration_code"`
	M          float64  `json:"m"`
	B          float64  `json:"b"`
}

// CoefficientKey identifies a coefficient row.
type CoefficientKey struct {
	LocationID string
	Duration   Duration
}

// Key returns the lookup key of c.
func (c Coefficient) Key() CoefficientKey {
	return CoefficientKey{LocationID: c.LocationID, Duration: c.Duration}
}

// ARIResult is the recurrence interval derived from one sample.
type ARIResult struct {
	LocationID string    `json:"location_id"`
	Duration   Duration  `json:"duration_code"`
	Timestamp  time.Time `json:"timestamp"`
	DepthMM    float64   `json:"depth_mm"`
	ARIYears   float64   `json:"ari_years"`
	OutOfRange bool      `json:"out_of_range,omitempty"`
}

// Exceeds reports whether the result meets or passes threshold years.
func (r ARIResult) Exceeds(threshold float64) bool {
	return r.ARIYears >= threshold
}

// Gauge describes a rain gauge location and the metadata the quality rules need.
type Gauge struct {
	LocationID string   `json:"location_id"`
	Name       string   `json:"name"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
}
