package pipeline

import (
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/quality"
)

type catchmentJob struct {
	catchment domain.Catchment
	start     time.Time
	end       time.Time
}

// span is a time range grown to cover every alarm evidence range at a location.
type span struct {
	start, end time.Time
}

func (s *span) cover(start, end time.Time) {
	if s.start.IsZero() || start.Before(s.start) {
		s.start = start
	}
	if s.end.IsZero() || end.After(s.end) {
		s.end = end
	}
}

// plan lists the gauges and catchments to process. Listed entities come
// first in request order, followed by alarm locations nobody listed. Each
// entity is fetched over the request range, or over the union of its alarms'
// evidence ranges when the request leaves the range open.
func (p *Pipeline) plan(req Request) ([]job, []catchmentJob) {
	window := p.validator.DefaultWindow()
	spans := make(map[string]*span)
	var extraGauges, extraCatchments []string
	listedGauges := make(map[string]bool, len(req.Gauges))
	for _, g := range req.Gauges {
		listedGauges[g.LocationID] = true
	}
	listedCatchments := make(map[string]bool, len(req.Catchments))
	for _, c := range req.Catchments {
		listedCatchments[c.ID] = true
	}

	for _, a := range req.Alarms {
		if a.LocationID == "" {
			continue
		}
		start, end := p.validator.EvidenceRange(a, window)
		s, ok := spans[a.LocationID]
		if !ok {
			s = &span{}
			spans[a.LocationID] = s
			switch {
			case a.Scope == domain.ScopeCatchment && !listedCatchments[a.LocationID]:
				extraCatchments = append(extraCatchments, a.LocationID)
			case a.Scope != domain.ScopeCatchment && !listedGauges[a.LocationID]:
				extraGauges = append(extraGauges, a.LocationID)
			}
		}
		s.cover(start, end)
	}

	rangeFor := func(id string) (time.Time, time.Time) {
		if !req.Start.IsZero() || !req.End.IsZero() {
			return req.Start, req.End
		}
		if s, ok := spans[id]; ok {
			return s.start, s.end
		}
		return time.Time{}, time.Time{}
	}

	seen := make(map[string]bool)
	var gauges []job
	for i := range req.Gauges {
		g := req.Gauges[i]
		if seen[g.LocationID] {
			continue
		}
		seen[g.LocationID] = true
		start, end := rangeFor(g.LocationID)
		gauges = append(gauges, job{id: g.LocationID, kind: quality.KindGauge, gauge: &g, start: start, end: end})
	}
	for _, id := range extraGauges {
		if seen[id] {
			continue
		}
		seen[id] = true
		start, end := rangeFor(id)
		gauges = append(gauges, job{id: id, kind: quality.KindGauge, start: start, end: end})
	}

	seenCatchments := make(map[string]bool)
	var catchments []catchmentJob
	add := func(c domain.Catchment) {
		if seenCatchments[c.ID] {
			return
		}
		seenCatchments[c.ID] = true
		start, end := rangeFor(c.ID)
		catchments = append(catchments, catchmentJob{catchment: c, start: start, end: end})
	}
	for _, c := range req.Catchments {
		add(c)
	}
	for _, id := range extraCatchments {
		add(domain.Catchment{ID: id})
	}
	return gauges, catchments
}

func gaugeIDs(jobs []job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.id
	}
	return ids
}

func catchmentIDs(jobs []catchmentJob) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.catchment.ID
	}
	return ids
}

func alarmIDs(alarms []domain.AlarmRecord) []string {
	ids := make([]string, len(alarms))
	for i, a := range alarms {
		ids[i] = a.AlarmID
	}
	return ids
}
