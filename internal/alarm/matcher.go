package alarm

import (
	"sort"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// DefaultMatchTolerance is how far outside an event an alarm may fall and still match it.
const DefaultMatchTolerance = 15 * time.Minute

// Match pairs an alarm with the exceedance event it most likely reported.
type Match struct {
	AlarmID    string        `json:"alarm_id"`
	LocationID string        `json:"location_id"`
	EventStart time.Time     `json:"event_start"`
	Offset     time.Duration `json:"offset"`
}

// MatchReport summarizes how well the alarm log tracks computed exceedances.
type MatchReport struct {
	Matches         []Match              `json:"matches"`
	MissedAlarms    []domain.AlarmRecord `json:"missed_alarms"`
	UnalarmedEvents []ExceedanceEvent    `json:"unalarmed_events"`
	MatchRate       float64              `json:"match_rate"`
}

// MatchAlarms pairs each alarm with the nearest event at its location whose
// span, widened by tolerance, contains the alarm's creation time. Alarms with
// no such event are missed; events no alarm matched are unalarmed.
func MatchAlarms(alarms []domain.AlarmRecord, events []ExceedanceEvent, tolerance time.Duration) MatchReport {
	byLocation := make(map[string][]int)
	for i, e := range events {
		byLocation[e.LocationID] = append(byLocation[e.LocationID], i)
	}

	ordered := make([]domain.AlarmRecord, len(alarms))
	copy(ordered, alarms)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CreatedTime.Before(ordered[j].CreatedTime) })

	var report MatchReport
	used := make(map[int]bool)
	for _, a := range ordered {
		best, bestOffset := -1, time.Duration(0)
		for _, i := range byLocation[a.LocationID] {
			offset, ok := offsetFromEvent(a.CreatedTime, events[i], tolerance)
			if !ok {
				continue
			}
			if best == -1 || absDuration(offset) < absDuration(bestOffset) {
				best, bestOffset = i, offset
			}
		}
		if best == -1 {
			report.MissedAlarms = append(report.MissedAlarms, a)
			continue
		}
		used[best] = true
		report.Matches = append(report.Matches, Match{
			AlarmID:    a.AlarmID,
			LocationID: a.LocationID,
			EventStart: events[best].Start,
			Offset:     bestOffset,
		})
	}

	for i, e := range events {
		if !used[i] {
			report.UnalarmedEvents = append(report.UnalarmedEvents, e)
		}
	}
	if len(alarms) > 0 {
		report.MatchRate = float64(len(report.Matches)) / float64(len(alarms))
	}
	return report
}

// offsetFromEvent returns how far t lies outside the event span (zero inside).
func offsetFromEvent(t time.Time, e ExceedanceEvent, tolerance time.Duration) (time.Duration, bool) {
	switch {
	case t.Before(e.Start):
		d := t.Sub(e.Start)
		return d, -d <= tolerance
	case t.After(e.End):
		d := t.Sub(e.End)
		return d, d <= tolerance
	default:
		return 0, true
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
