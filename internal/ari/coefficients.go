package ari

import (
	"fmt"
	"math"
	"sort"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// CoefficientTable is an immutable lookup of TP108 coefficients keyed by
// location and duration.
type CoefficientTable struct {
	rows map[domain.CoefficientKey]domain.Coefficient
}

// NewCoefficientTable indexes rows. A duplicate key, unknown duration or
// non-finite coefficient invalidates the whole table.
func NewCoefficientTable(rows []domain.Coefficient) (*CoefficientTable, error) {
	t := &CoefficientTable{rows: make(map[domain.CoefficientKey]domain.Coefficient, len(rows))}
	for _, c := range rows {
		if !c.Duration.Valid() {
			return nil, fmt.Errorf("%w: location %s has unknown duration %q", domain.ErrInvalidCoefficient, c.LocationID, c.Duration)
		}
		if !finite(c.M) || !finite(c.B) {
			return nil, fmt.Errorf("%w: location %s duration %s has non-finite m or b", domain.ErrInvalidCoefficient, c.LocationID, c.Duration)
		}
		if _, dup := t.rows[c.Key()]; dup {
			return nil, fmt.Errorf("%w: location %s duration %s", domain.ErrDuplicateCoefficient, c.LocationID, c.Duration)
		}
		t.rows[c.Key()] = c
	}
	return t, nil
}

// Lookup returns the coefficient for a location and duration.
func (t *CoefficientTable) Lookup(locationID string, d domain.Duration) (domain.Coefficient, error) {
	c, ok := t.rows[domain.CoefficientKey{LocationID: locationID, Duration: d}]
	if !ok {
		return domain.Coefficient{}, &domain.MissingCoefficientError{LocationID: locationID, Duration: d}
	}
	return c, nil
}

// Len returns the number of rows.
func (t *CoefficientTable) Len() int { return len(t.rows) }

// Locations returns the distinct location IDs in sorted order.
func (t *CoefficientTable) Locations() []string {
	seen := make(map[string]struct{})
	for k := range t.rows {
		seen[k.LocationID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
