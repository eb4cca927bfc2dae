package domain

import (
	"fmt"
	"strings"
	"time"
)

// Duration is an accumulation window code such as "10m" or "24h".
type Duration string

const (
	Duration10m Duration = "10m"
	Duration20m Duration = "20m"
	Duration30m Duration = "30m"
	Duration60m Duration = "60m"
	Duration2h  Duration = "2h"
	Duration6h  Duration = "6h"
	Duration12h Duration = "12h"
	Duration24h Duration = "24h"
)

var durationMinutes = map[Duration]int{
	Duration10m: 10,
	Duration20m: 20,
	Duration30m: 30,
	Duration60m: 60,
	Duration2h:  120,
	Duration6h:  360,
	Duration12h: 720,
	Duration24h: 1440,
}

// AllDurations returns the supported durations, shortest first.
func AllDurations() []Duration {
	return []Duration{
		Duration10m, Duration20m, Duration30m, Duration60m,
		Duration2h, Duration6h, Duration12h, Duration24h,
	}
}

// Minutes returns the window length in minutes, or 0 for an unknown code.
func (d Duration) Minutes() int {
	return durationMinutes[d]
}

// Window returns the window length as a time.Duration.
func (d Duration) Window() time.Duration {
	return time.Duration(d.Minutes()) * time.Minute
}

// Valid reports whether d is one of the supported codes.
func (d Duration) Valid() bool {
	_, ok := durationMinutes[d]
	return ok
}

// Order returns the position of d in AllDurations, used for stable sorting.
// Unknown codes sort last.
func (d Duration) Order() int {
	for i, known := range AllDurations() {
		if known == d {
			return i
		}
	}
	return len(durationMinutes)
}

func (d Duration) String() string { return string(d) }

// ParseDuration normalizes a duration code. Upstream exports mix "60m", "1h"
// and "60min", so all three spellings are accepted for the hourly window.
func ParseDuration(s string) (Duration, error) {
	code := strings.ToLower(strings.TrimSpace(s))
	code = strings.TrimSuffix(code, "in")
	switch code {
	case "1h", "60":
		code = "60m"
	case "120m":
		code = "2h"
	}
	d := Duration(code)
	if !d.Valid() {
		return "", fmt.Errorf("unknown duration code %q", s)
	}
	return d, nil
}
