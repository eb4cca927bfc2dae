package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/alarm"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/ari"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/observability"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/quality"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/spatial"
)

// ErrInvalidRequest is returned when a run request cannot be processed at all.
var ErrInvalidRequest = errors.New("invalid run request")

// RuleSource marks rejections caused by the data source rather than a quality rule.
const RuleSource = "source"

// Source supplies rainfall series and catchment membership.
type Source interface {
	GetSeries(ctx context.Context, locationID string, d domain.Duration, start, end time.Time) ([]domain.RainfallSample, error)
	GetCatchmentMembership(ctx context.Context, catchmentID string) ([]string, error)
}

// Request names what one run analyses. Start and End may be zero; the range is
// then derived from the alarms, or left open when there are none.
type Request struct {
	Gauges     []domain.Gauge
	Catchments []domain.Catchment
	Alarms     []domain.AlarmRecord
	Start      time.Time
	End        time.Time
}

// Pipeline orchestrates quality filtering, ARI computation, spatial
// aggregation and alarm validation over one request.
type Pipeline struct {
	source     Source
	engine     *ari.Engine
	aggregator *spatial.Aggregator
	validator  *alarm.Validator
	filter     *quality.Filter
	settings   domain.Settings
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	last       atomic.Pointer[domain.Report]
}

// New creates a Pipeline with the given components and observability.
func New(source Source, engine *ari.Engine, aggregator *spatial.Aggregator, validator *alarm.Validator, filter *quality.Filter, settings domain.Settings, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:     source,
		engine:     engine,
		aggregator: aggregator,
		validator:  validator,
		filter:     filter,
		settings:   settings,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one run,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastReport returns the report of the most recent run, or nil before the first.
func (p *Pipeline) LastReport() *domain.Report {
	return p.last.Load()
}

// job is one location to fetch and analyse.
type job struct {
	id    string
	kind  quality.SeriesKind
	gauge *domain.Gauge
	start time.Time
	end   time.Time
}

// fetchKey identifies one location fetched over one time range. A pixel shared
// by catchments with different ranges is fetched once per range.
type fetchKey struct {
	id         string
	start, end time.Time
}

type resultKey struct {
	duration domain.Duration
	ts       time.Time
}

// evidence accumulates everything the alarm validator may need, keyed by location.
type evidence struct {
	ari      map[string][]domain.ARIResult
	samples  map[string][]domain.RainfallSample
	coverage map[string][]domain.CatchmentCoverage
	missing  map[string]error
	fetched  map[fetchKey][]domain.ARIResult
	seen     map[string]map[resultKey]struct{}
	gaugeARI []domain.ARIResult
}

func newEvidence() *evidence {
	return &evidence{
		ari:      make(map[string][]domain.ARIResult),
		samples:  make(map[string][]domain.RainfallSample),
		coverage: make(map[string][]domain.CatchmentCoverage),
		missing:  make(map[string]error),
		fetched:  make(map[fetchKey][]domain.ARIResult),
		seen:     make(map[string]map[resultKey]struct{}),
	}
}

// record keeps the results not already held for id and returns them, so
// overlapping ranges never report the same (duration, timestamp) twice.
func (e *evidence) record(id string, results []domain.ARIResult) []domain.ARIResult {
	seen, ok := e.seen[id]
	if !ok {
		seen = make(map[resultKey]struct{})
		e.seen[id] = seen
	}
	var fresh []domain.ARIResult
	for _, r := range results {
		k := resultKey{duration: r.Duration, ts: r.Timestamp.UTC()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, r)
	}
	e.ari[id] = append(e.ari[id], fresh...)
	return fresh
}

func (e *evidence) forAlarm(a domain.AlarmRecord) alarm.Evidence {
	return alarm.Evidence{
		Missing:  e.missing[a.LocationID],
		ARI:      e.ari[a.LocationID],
		Coverage: e.coverage[a.LocationID],
		Samples:  e.samples[a.LocationID],
	}
}

// Run processes gauges, then catchments, then alarms, one entity at a time.
// Per-entity failures become rejections, skip records or UNVERIFIABLE
// verdicts. When ctx ends mid-run the partial report is returned with the
// remaining entity ids listed as unprocessed.
func (p *Pipeline) Run(ctx context.Context, req Request) (*domain.Report, error) {
	if !req.Start.IsZero() && !req.End.IsZero() && req.End.Before(req.Start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidRequest, req.End.Format(time.RFC3339), req.Start.Format(time.RFC3339))
	}

	started := time.Now()
	report := &domain.Report{RunID: uuid.NewString(), StartedAt: domain.Now()}
	p.logger.Info("run started", "run_id", report.RunID,
		"gauges", len(req.Gauges), "catchments", len(req.Catchments), "alarms", len(req.Alarms))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	gauges, catchments := p.plan(req)
	ev := newEvidence()

	for i, j := range gauges {
		if ctx.Err() != nil {
			p.cancel(report, gaugeIDs(gauges[i:]), catchmentIDs(catchments), alarmIDs(req.Alarms))
			return p.finish(report, req, ev, started), nil
		}
		results, err := p.processLocation(ctx, j, report, ev)
		if err != nil {
			p.cancel(report, gaugeIDs(gauges[i:]), catchmentIDs(catchments), alarmIDs(req.Alarms))
			return p.finish(report, req, ev, started), nil
		}
		ev.gaugeARI = append(ev.gaugeARI, results...)
		p.metrics.LocationsProcessed.WithLabelValues(string(quality.KindGauge)).Inc()
	}

	for i, c := range catchments {
		if ctx.Err() != nil {
			p.cancel(report, nil, catchmentIDs(catchments[i:]), alarmIDs(req.Alarms))
			return p.finish(report, req, ev, started), nil
		}
		if err := p.processCatchment(ctx, c.catchment, c.start, c.end, report, ev); err != nil {
			p.cancel(report, nil, catchmentIDs(catchments[i:]), alarmIDs(req.Alarms))
			return p.finish(report, req, ev, started), nil
		}
		p.metrics.LocationsProcessed.WithLabelValues("catchment").Inc()
	}

	window := p.validator.DefaultWindow()
	for i, a := range req.Alarms {
		if ctx.Err() != nil {
			p.cancel(report, nil, nil, alarmIDs(req.Alarms[i:]))
			return p.finish(report, req, ev, started), nil
		}
		verdict := p.validator.Validate(a, ev.forAlarm(a), window)
		p.metrics.Verdicts.WithLabelValues(string(verdict.Status)).Inc()
		report.Verdicts = append(report.Verdicts, verdict)
	}

	report = p.finish(report, req, ev, started)
	p.ready.Store(true)
	return report, nil
}

func (p *Pipeline) cancel(report *domain.Report, groups ...[]string) {
	report.Cancelled = true
	for _, ids := range groups {
		report.Unprocessed = append(report.Unprocessed, ids...)
	}
	p.logger.Warn("run cancelled", "run_id", report.RunID, "unprocessed", len(report.Unprocessed))
}

func (p *Pipeline) finish(report *domain.Report, req Request, ev *evidence, started time.Time) *domain.Report {
	report.Summary = p.summarize(report, req, ev)
	report.FinishedAt = domain.Now()
	p.last.Store(report)
	p.metrics.RunDuration.Observe(time.Since(started).Seconds())
	p.metrics.LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
	p.logger.Info("run finished", "run_id", report.RunID,
		"ari_results", len(report.ARIResults),
		"coverage_rows", len(report.Coverage),
		"verdicts", len(report.Verdicts),
		"rejections", len(report.Rejections),
		"cancelled", report.Cancelled,
	)
	return report
}

// processLocation fetches every configured duration for one location, screens
// it through the quality filter and computes ARIs for the clean samples. Only
// a context error is returned. Results cover the job's range.
func (p *Pipeline) processLocation(ctx context.Context, j job, report *domain.Report, ev *evidence) ([]domain.ARIResult, error) {
	key := fetchKey{id: j.id, start: j.start.UTC(), end: j.end.UTC()}
	if results, ok := ev.fetched[key]; ok {
		return results, nil
	}

	var (
		results []domain.ARIResult
		unknown int
		lastErr error
	)
	for _, d := range p.settings.Durations {
		samples, err := p.source.GetSeries(ctx, j.id, d, j.start, j.end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if errors.Is(err, domain.ErrUnknownLocation) {
				unknown++
				continue
			}
			p.logger.Warn("fetch series failed", "location_id", j.id, "duration", d, "error", err)
			p.reject(report, domain.Rejection{LocationID: j.id, Rule: RuleSource, Reason: fmt.Sprintf("%s series: %v", d, err)})
			continue
		}
		ev.samples[j.id] = append(ev.samples[j.id], samples...)

		accepted, rejections, excluded := p.filter.Check(quality.Series{
			LocationID: j.id,
			Kind:       j.kind,
			Gauge:      j.gauge,
			Samples:    samples,
			Start:      j.start,
			End:        j.end,
		})
		for _, x := range excluded {
			p.metrics.SamplesExcluded.Inc()
			p.reject(report, x.AsRejection())
		}
		if len(rejections) > 0 {
			for _, r := range rejections {
				r.Reason = fmt.Sprintf("%s series: %s", d, r.Reason)
				p.reject(report, r)
			}
			continue
		}

		batch := p.engine.ComputeBatch(accepted.Clean)
		computed := batch.Collect()
		for _, s := range batch.Skipped() {
			p.metrics.SamplesSkipped.WithLabelValues(s.Reason).Add(float64(s.Count))
			report.Skipped = append(report.Skipped, s)
		}
		p.metrics.ARIResultsComputed.Add(float64(len(computed)))
		results = append(results, computed...)
	}

	if unknown == len(p.settings.Durations) {
		ev.missing[j.id] = &domain.MissingLocationDataError{LocationID: j.id, Err: lastErr}
		p.logger.Warn("location has no data in source", "location_id", j.id)
	}
	ev.fetched[key] = results
	report.ARIResults = append(report.ARIResults, ev.record(j.id, results)...)
	return results, nil
}

// processCatchment analyses every member pixel and reduces them to coverage
// rows. An empty catchment is recorded as a fatal rejection and skipped.
func (p *Pipeline) processCatchment(ctx context.Context, c domain.Catchment, start, end time.Time, report *domain.Report, ev *evidence) error {
	members := c.Members
	if len(members) == 0 {
		fetched, err := p.source.GetCatchmentMembership(ctx, c.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, domain.ErrUnknownLocation) {
				ev.missing[c.ID] = &domain.MissingLocationDataError{LocationID: c.ID, Err: err}
				return nil
			}
			p.reject(report, domain.Rejection{LocationID: c.ID, Rule: RuleSource, Reason: fmt.Sprintf("catchment membership: %v", err)})
			return nil
		}
		members = fetched
	}
	catchment := domain.NewCatchment(c.ID, c.Name, members)
	catchment.Boundary = c.Boundary

	if len(catchment.Members) == 0 {
		err := fmt.Errorf("catchment %s: %w", c.ID, domain.ErrEmptyCatchment)
		p.logger.Error("catchment skipped", "catchment_id", c.ID, "error", err)
		p.reject(report, domain.Rejection{LocationID: c.ID, Rule: quality.RulePixelCoverage, Reason: err.Error(), Fatal: true})
		ev.missing[c.ID] = &domain.MissingLocationDataError{LocationID: c.ID, Err: err}
		return nil
	}

	var (
		pixelResults []domain.ARIResult
		withData     int
	)
	for _, pixel := range catchment.Members {
		results, err := p.processLocation(ctx, job{id: pixel, kind: quality.KindRadar, start: start, end: end}, report, ev)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			withData++
		}
		pixelResults = append(pixelResults, results...)
	}

	if r := p.filter.CheckPixelCoverage(catchment.ID, withData, len(catchment.Members)); r != nil {
		p.reject(report, *r)
	}

	coverage, err := p.aggregator.AggregateAll(catchment, pixelResults, p.settings.ARIThresholdYears)
	if err != nil {
		return fmt.Errorf("aggregate catchment %s: %w", catchment.ID, err)
	}
	ev.coverage[catchment.ID] = coverage
	report.Coverage = append(report.Coverage, coverage...)

	if peak, ok := spatial.Peak(catchment, pixelResults, p.settings.ARIThresholdYears); ok {
		report.Summary.Peaks = append(report.Summary.Peaks, peak)
	}
	return nil
}

func (p *Pipeline) reject(report *domain.Report, r domain.Rejection) {
	p.metrics.Rejections.WithLabelValues(r.Rule).Inc()
	report.Rejections = append(report.Rejections, r)
}

func (p *Pipeline) summarize(report *domain.Report, req Request, ev *evidence) domain.Summary {
	summary := report.Summary
	summary.StatusCounts = report.StatusCounts()
	summary.ProportionBins = spatial.ProportionBins(report.Coverage)

	events := alarm.GroupConsecutive(alarm.FindExceedances(ev.gaugeARI, p.settings.ARIThresholdYears), alarm.DefaultMaxGap, 1)
	summary.ExceedanceRuns = len(events)

	var overflow []domain.AlarmRecord
	for _, a := range req.Alarms {
		if a.Kind == domain.AlarmOverflow && a.Scope != domain.ScopeCatchment {
			overflow = append(overflow, a)
		}
	}
	if len(overflow) > 0 {
		m := alarm.MatchAlarms(overflow, events, alarm.DefaultMatchTolerance)
		matching := &domain.MatchSummary{
			Alarms:          len(overflow),
			Matched:         len(m.Matches),
			UnalarmedEvents: len(m.UnalarmedEvents),
			MatchRate:       m.MatchRate,
		}
		for _, missed := range m.MissedAlarms {
			matching.MissedAlarmIDs = append(matching.MissedAlarmIDs, missed.AlarmID)
		}
		summary.Matching = matching
	}
	return summary
}
