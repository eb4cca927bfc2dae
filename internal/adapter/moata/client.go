// Package moata reads rainfall series and catchment pixel membership from the
// Moata HTTP API.
package moata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/ari"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/observability"
)

const (
	defaultMaxRetries = 4
	srIDWGS84         = 4326
)

// lookback covers the longest accumulation window so every duration can be
// derived from one fetch of raw increments.
const lookback = 24 * time.Hour

// Options configures a Client.
type Options struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	CacheSize    int
	CollectionID int
	TraceSetID   int
	DataInterval time.Duration
	MaxRetries   uint64
}

// Client implements the pipeline Source over the Moata API. Gauge ids are
// trace ids; radar pixel ids are learned from membership lookups or
// registered with RegisterPixels.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	newBackOff func() backoff.BackOff

	members    *lruCache[[]string]
	increments *lruCache[[]domain.RainfallSample]

	mu         sync.RWMutex
	pixels     map[string]bool
	boundaries map[string]string
}

// NewClient creates a Moata client.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger:  logger,
		metrics: metrics,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		members:    newLRUCache[[]string](opts.CacheSize),
		increments: newLRUCache[[]domain.RainfallSample](opts.CacheSize),
		pixels:     make(map[string]bool),
		boundaries: make(map[string]string),
	}
}

// RegisterPixels marks ids as radar pixel indices.
func (c *Client) RegisterPixels(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.pixels[id] = true
	}
}

// RegisterCatchments records the WKT boundaries used to look up membership.
func (c *Client) RegisterCatchments(catchments ...domain.Catchment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ct := range catchments {
		if ct.Boundary != "" {
			c.boundaries[ct.ID] = ct.Boundary
		}
		for _, m := range ct.Members {
			c.pixels[m] = true
		}
	}
}

func (c *Client) isPixel(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pixels[id]
}

// GetSeries returns accumulated depths for d with timestamps in [start, end].
// Raw increments are fetched from lookback before start so the first totals
// in range have full windows.
func (c *Client) GetSeries(ctx context.Context, locationID string, d domain.Duration, start, end time.Time) ([]domain.RainfallSample, error) {
	if start.IsZero() || end.IsZero() {
		return nil, &domain.SourceError{Op: "get series " + locationID, Err: errors.New("moata requests need a bounded time range")}
	}

	raw, err := c.rawIncrements(ctx, locationID, start.Add(-lookback), end)
	if err != nil {
		return nil, err
	}
	totals, err := ari.Accumulate(raw, c.opts.DataInterval, d)
	if err != nil {
		return nil, fmt.Errorf("accumulate %s for %s: %w", d, locationID, err)
	}

	out := totals[:0]
	for _, s := range totals {
		if !s.Timestamp.Before(start) && !s.Timestamp.After(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Client) rawIncrements(ctx context.Context, locationID string, from, to time.Time) ([]domain.RainfallSample, error) {
	key := fmt.Sprintf("%s|%d|%d", locationID, from.Unix(), to.Unix())
	if cached, ok := c.increments.get(key); ok {
		c.metrics.SourceCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	c.metrics.SourceCache.WithLabelValues("miss").Inc()

	var (
		raw []domain.RainfallSample
		err error
	)
	if c.isPixel(locationID) {
		raw, err = c.pixelIncrements(ctx, locationID, from, to)
	} else {
		raw, err = c.traceIncrements(ctx, locationID, from, to)
	}
	if err != nil {
		return nil, err
	}
	c.increments.put(key, raw)
	return raw, nil
}

type traceItem struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

type tracePage struct {
	Items []traceItem `json:"items"`
}

func (c *Client) traceIncrements(ctx context.Context, traceID string, from, to time.Time) ([]domain.RainfallSample, error) {
	if _, err := strconv.Atoi(traceID); err != nil {
		return nil, &domain.SourceError{Op: "get trace " + traceID, Err: fmt.Errorf("%w: trace ids are numeric", domain.ErrUnknownLocation)}
	}
	params := url.Values{
		"from":          {from.UTC().Format(time.RFC3339)},
		"to":            {to.UTC().Format(time.RFC3339)},
		"dataType":      {"None"},
		"padWithZeroes": {"false"},
	}
	body, err := c.get(ctx, "series", fmt.Sprintf("/v1/traces/%s/data/utc", traceID), params)
	if err != nil {
		return nil, &domain.SourceError{Op: "get trace " + traceID, Retryable: errors.Is(err, domain.ErrRetryable), Err: err}
	}

	var items []traceItem
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &items)
	} else {
		var page tracePage
		err = json.Unmarshal(body, &page)
		items = page.Items
	}
	if err != nil {
		return nil, fmt.Errorf("decode trace %s: %w", traceID, err)
	}

	out := make([]domain.RainfallSample, len(items))
	for i, it := range items {
		out[i] = domain.RainfallSample{LocationID: traceID, Timestamp: it.Time.UTC(), DepthMM: valueOrNaN(it.Value)}
	}
	return out, nil
}

type pixelValues struct {
	TraceSetID int        `json:"traceSetId"`
	PixelIndex int        `json:"pixelIndex"`
	StartTime  time.Time  `json:"startTime"`
	Values     []*float64 `json:"values"`
}

func (c *Client) pixelIncrements(ctx context.Context, pixel string, from, to time.Time) ([]domain.RainfallSample, error) {
	params := url.Values{
		"TsId":      {strconv.Itoa(c.opts.TraceSetID)},
		"Pi":        {pixel},
		"StartTime": {from.UTC().Format(time.RFC3339)},
		"EndTime":   {to.UTC().Format(time.RFC3339)},
	}
	body, err := c.get(ctx, "series", fmt.Sprintf("/v1/trace-set-collections/%d/trace-sets/data", c.opts.CollectionID), params)
	if err != nil {
		return nil, &domain.SourceError{Op: "get pixel " + pixel, Retryable: errors.Is(err, domain.ErrRetryable), Err: err}
	}

	var rows []pixelValues
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode pixel %s: %w", pixel, err)
	}

	var out []domain.RainfallSample
	for _, row := range rows {
		if strconv.Itoa(row.PixelIndex) != pixel {
			continue
		}
		for i, v := range row.Values {
			out = append(out, domain.RainfallSample{
				LocationID: pixel,
				Timestamp:  row.StartTime.UTC().Add(time.Duration(i) * c.opts.DataInterval),
				DepthMM:    valueOrNaN(v),
			})
		}
	}
	if len(rows) > 0 && len(out) == 0 {
		return nil, &domain.SourceError{Op: "get pixel " + pixel, Err: domain.ErrUnknownLocation}
	}
	return out, nil
}

type pixelMapping struct {
	PixelIndex int `json:"pixelIndex"`
}

// GetCatchmentMembership returns the radar pixels intersecting the catchment
// boundary. Results are cached; the returned pixels are registered as radar ids.
func (c *Client) GetCatchmentMembership(ctx context.Context, catchmentID string) ([]string, error) {
	if cached, ok := c.members.get(catchmentID); ok {
		c.metrics.SourceCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	c.metrics.SourceCache.WithLabelValues("miss").Inc()

	c.mu.RLock()
	wkt, ok := c.boundaries[catchmentID]
	c.mu.RUnlock()
	if !ok {
		return nil, &domain.SourceError{Op: "get membership " + catchmentID, Err: fmt.Errorf("%w: no boundary registered", domain.ErrUnknownLocation)}
	}

	params := url.Values{
		"wkt":  {wkt},
		"srId": {strconv.Itoa(srIDWGS84)},
	}
	body, err := c.get(ctx, "membership", fmt.Sprintf("/v1/trace-set-collections/%d/pixel-mappings/intersects-geometry", c.opts.CollectionID), params)
	if err != nil {
		return nil, &domain.SourceError{Op: "get membership " + catchmentID, Retryable: errors.Is(err, domain.ErrRetryable), Err: err}
	}

	var mappings []pixelMapping
	if err := json.Unmarshal(body, &mappings); err != nil {
		return nil, fmt.Errorf("decode membership %s: %w", catchmentID, err)
	}
	members := make([]string, len(mappings))
	for i, m := range mappings {
		members[i] = strconv.Itoa(m.PixelIndex)
	}
	members = domain.NewCatchment(catchmentID, "", members).Members

	c.RegisterPixels(members...)
	c.members.put(catchmentID, members)
	return members, nil
}

// statusError carries an unexpected HTTP status.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("moata API error: status %d: %s", e.code, e.body)
}

func (e *statusError) Is(target error) bool {
	switch target {
	case domain.ErrRetryable:
		return e.code == http.StatusTooManyRequests || e.code >= 500
	case domain.ErrUnknownLocation:
		return e.code == http.StatusNotFound
	}
	return false
}

// get performs a GET with retries on throttling, server errors and transport
// failures. Other failures are returned at once.
func (c *Client) get(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	fullURL := strings.TrimRight(c.opts.BaseURL, "/") + path + "?" + params.Encode()

	op := func() ([]byte, error) {
		body, err := c.do(ctx, method, fullURL)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if !errors.Is(err, domain.ErrRetryable) {
			return nil, backoff.Permanent(err)
		}
		c.logger.Warn("moata request failed, retrying", "method", method, "error", err)
		return nil, err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.opts.MaxRetries), ctx)
	body, err := backoff.RetryWithData[[]byte](op, b)
	switch {
	case err == nil:
		c.metrics.SourceRequests.WithLabelValues(method, "success").Inc()
	case errors.Is(err, domain.ErrUnknownLocation):
		c.metrics.SourceRequests.WithLabelValues(method, "not_found").Inc()
	default:
		c.metrics.SourceRequests.WithLabelValues(method, "error").Inc()
	}
	return body, err
}

type transportError struct{ err error }

func (e *transportError) Error() string        { return e.err.Error() }
func (e *transportError) Unwrap() error        { return e.err }
func (e *transportError) Is(target error) bool { return target == domain.ErrRetryable }

func (c *Client) do(ctx context.Context, method, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.SourceAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("%s request: %w", method, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read %s response: %w", method, err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(body))}
	}
	return body, nil
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
