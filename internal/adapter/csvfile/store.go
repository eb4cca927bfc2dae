package csvfile

import (
	"context"
	"sort"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// SeriesStore serves accumulated series and catchment membership from tables
// loaded into memory. It implements pipeline.Source.
type SeriesStore struct {
	series     map[string][]domain.RainfallSample
	catchments map[string]domain.Catchment
}

// NewSeriesStore indexes samples by location and catchments by ID.
func NewSeriesStore(samples []domain.RainfallSample, catchments []domain.Catchment) *SeriesStore {
	s := &SeriesStore{
		series:     make(map[string][]domain.RainfallSample),
		catchments: make(map[string]domain.Catchment, len(catchments)),
	}
	for _, sample := range samples {
		s.series[sample.LocationID] = append(s.series[sample.LocationID], sample)
	}
	for loc := range s.series {
		rows := s.series[loc]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	}
	for _, c := range catchments {
		s.catchments[c.ID] = c
	}
	return s
}

// GetSeries returns the samples for a location and duration inside
// [start, end]. Zero bounds are open.
func (s *SeriesStore) GetSeries(ctx context.Context, locationID string, d domain.Duration, start, end time.Time) ([]domain.RainfallSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, ok := s.series[locationID]
	if !ok {
		return nil, &domain.SourceError{Op: "get series " + locationID, Err: domain.ErrUnknownLocation}
	}
	var out []domain.RainfallSample
	for _, r := range rows {
		if r.Duration != d {
			continue
		}
		if !start.IsZero() && r.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && r.Timestamp.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// GetCatchmentMembership returns the member pixels of a catchment.
func (s *SeriesStore) GetCatchmentMembership(ctx context.Context, catchmentID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := s.catchments[catchmentID]
	if !ok {
		return nil, &domain.SourceError{Op: "get membership " + catchmentID, Err: domain.ErrUnknownLocation}
	}
	members := make([]string, len(c.Members))
	copy(members, c.Members)
	return members, nil
}
