package domain

import (
	"errors"
	"fmt"
)

// Structural errors. These abort the affected unit of work rather than being
// recorded as a per-entity rejection.
var (
	ErrDuplicateCoefficient = errors.New("duplicate coefficient row")
	ErrInvalidCoefficient   = errors.New("invalid coefficient")
	ErrEmptyCatchment       = errors.New("catchment has no member pixels")
)

// Source error classes.
var (
	ErrRetryable       = errors.New("transient source failure")
	ErrUnknownLocation = errors.New("unknown location")
)

// MissingCoefficientError means no TP108 row exists for a location and duration.
type MissingCoefficientError struct {
	LocationID string
	Duration   Duration
}

func (e *MissingCoefficientError) Error() string {
	return fmt.Sprintf("no TP108 coefficient for location %s duration %s", e.LocationID, e.Duration)
}

// InsufficientCoverageError means too few catchment pixels reported data.
type InsufficientCoverageError struct {
	CatchmentID    string
	PixelsWithData int
	PixelsTotal    int
	Floor          float64
}

func (e *InsufficientCoverageError) Error() string {
	return fmt.Sprintf("insufficient pixel coverage: %d/%d pixels reporting (%.0f%% < %.0f%% floor)",
		e.PixelsWithData, e.PixelsTotal, 100*ratio(e.PixelsWithData, e.PixelsTotal), 100*e.Floor)
}

// InvalidSampleError means a depth was null, negative or above the plausible maximum.
type InvalidSampleError struct {
	LocationID string
	DepthMM    float64
	Reason     string
}

func (e *InvalidSampleError) Error() string {
	return fmt.Sprintf("invalid sample for %s (depth %g mm): %s", e.LocationID, e.DepthMM, e.Reason)
}

// MissingLocationDataError means the source holds no series for a location.
type MissingLocationDataError struct {
	LocationID string
	Err        error
}

func (e *MissingLocationDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no data for location %s: %v", e.LocationID, e.Err)
	}
	return fmt.Sprintf("no data for location %s", e.LocationID)
}

func (e *MissingLocationDataError) Unwrap() error { return e.Err }

// SourceError wraps a failure reported by an upstream data source.
type SourceError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is lets errors.Is(err, ErrRetryable) match retryable source failures.
func (e *SourceError) Is(target error) bool {
	return target == ErrRetryable && e.Retryable
}

func (e *SourceError) Unwrap() error { return e.Err }

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
