package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/adapter/http"
	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type stubReports struct {
	report *domain.Report
}

func (s stubReports) LastReport() *domain.Report { return s.report }

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, stubReports{}, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReadyzJoinsAllCheckers(t *testing.T) {
	ready := httpadapter.AllReady(
		&mockReadiness{},
		&mockReadiness{err: fmt.Errorf("database unreachable")},
	)
	srv := httpadapter.NewServer(":0", ready, stubReports{}, slog.Default())
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database unreachable")
}

func TestLatestRunNotFoundBeforeFirstRun(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/latest", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestRunSummarizesReport(t *testing.T) {
	report := &domain.Report{
		RunID:      "run-7",
		ARIResults: make([]domain.ARIResult, 3),
		Verdicts:   []domain.ValidationVerdict{{AlarmID: "A-1", Status: domain.StatusSupported}},
		Summary:    domain.Summary{StatusCounts: map[domain.Status]int{domain.StatusSupported: 1}},
	}
	srv := httpadapter.NewServer(":0", &mockReadiness{}, stubReports{report: report}, slog.Default())
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		RunID      string `json:"run_id"`
		ARIResults int    `json:"ari_results"`
		Summary    struct {
			StatusCounts map[string]int `json:"status_counts"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-7", body.RunID)
	assert.Equal(t, 3, body.ARIResults)
	assert.Equal(t, 1, body.Summary.StatusCounts["SUPPORTED"])
}
