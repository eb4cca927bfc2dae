package domain

import (
	"sort"
	"time"
)

// Catchment is a drainage area and the radar pixels that intersect it.
type Catchment struct {
	ID       string   `json:"catchment_id"`
	Name     string   `json:"name"`
	Boundary string   `json:"boundary,omitempty"` // WKT polygon, opaque here
	Members  []string `json:"members"`
}

// NewCatchment builds a catchment whose member list is de-duplicated and sorted.
func NewCatchment(id, name string, members []string) Catchment {
	return Catchment{ID: id, Name: name, Members: uniqueSorted(members)}
}

// MemberSet returns the members as a set.
func (c Catchment) MemberSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		set[m] = struct{}{}
	}
	return set
}

// CatchmentCoverage is the proportion of reporting pixels exceeding an ARI
// threshold at one timestamp. FractionExceeding is nil when fewer pixels
// reported than the coverage floor allows; Reason then explains why.
type CatchmentCoverage struct {
	CatchmentID       string    `json:"catchment_id"`
	Duration          Duration  `json:"duration_code"`
	Timestamp         time.Time `json:"timestamp"`
	FractionExceeding *float64  `json:"fraction_exceeding"`
	PixelsWithData    int       `json:"pixels_with_data"`
	PixelsExceeding   int       `json:"pixels_exceeding"`
	PixelsTotal       int       `json:"pixels_total"`
	Reason            string    `json:"reason,omitempty"`
}

// Sufficient reports whether enough pixels reported to publish a fraction.
func (c CatchmentCoverage) Sufficient() bool {
	return c.FractionExceeding != nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
