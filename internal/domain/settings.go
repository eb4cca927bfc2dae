package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// BoundingBox is a latitude/longitude rectangle in WGS84 degrees.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" validate:"gte=-90,lte=90"`
	MinLon float64 `json:"min_lon" validate:"gte=-180,lte=180"`
	MaxLat float64 `json:"max_lat" validate:"gte=-90,lte=90,gtfield=MinLat"`
	MaxLon float64 `json:"max_lon" validate:"gte=-180,lte=180,gtfield=MinLon"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Settings holds every tunable threshold. Components receive it at
// construction and never read globals.
type Settings struct {
	ARIThresholdYears          float64       `validate:"gt=0"`
	MaxARIYears                float64       `validate:"gt=0,gtefield=ARIThresholdYears"`
	SpatialProportionThreshold float64       `validate:"gt=0,lte=1"`
	CoverageFloor              float64       `validate:"gt=0,lte=1"`
	TemporalCoverageMin        float64       `validate:"gte=0,lte=1"`
	InactiveThresholdMonths    int           `validate:"gte=1"`
	MinDepthMM                 float64       `validate:"gte=0"`
	MaxDepthMM                 float64       `validate:"gtfield=MinDepthMM"`
	BoundingBox                BoundingBox   `validate:"required"`
	GaugeExcludePattern        string        `validate:"omitempty,regexp"`
	SampleInterval             time.Duration `validate:"gt=0"`
	WindowBefore               time.Duration `validate:"gte=0"`
	WindowAfter                time.Duration `validate:"gte=0"`
	RecencyAlarmAge            time.Duration `validate:"gt=0"`
	Durations                  []Duration    `validate:"min=1,dive,duration"`
}

// DefaultSettings returns the thresholds used by the Auckland analysis.
func DefaultSettings() Settings {
	return Settings{
		ARIThresholdYears:          5,
		MaxARIYears:                1000,
		SpatialProportionThreshold: 0.30,
		CoverageFloor:              0.50,
		TemporalCoverageMin:        0.80,
		InactiveThresholdMonths:    3,
		MinDepthMM:                 0,
		MaxDepthMM:                 500,
		BoundingBox:                BoundingBox{MinLat: -37.6, MinLon: 174.0, MaxLat: -35.9, MaxLon: 175.9},
		GaugeExcludePattern:        "northland|waikato",
		SampleInterval:             5 * time.Minute,
		WindowBefore:               time.Hour,
		WindowAfter:                time.Hour,
		RecencyAlarmAge:            6 * time.Hour,
		Durations:                  AllDurations(),
	}
}

var settingsValidator = newSettingsValidator()

func newSettingsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		return Duration(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks every field against its documented range.
func (s Settings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
