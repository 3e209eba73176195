package ops_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridatlas/queue-etl/internal/adapter/ops"
	"github.com/gridatlas/queue-etl/internal/store/sqlite"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRuns struct {
	rec *sqlite.RunRecord
	err error
}

func (m *mockRuns) LastRun(_ context.Context) (*sqlite.RunRecord, error) { return m.rec, m.err }

func newTestServer(readyErr error, runs ops.RunSource) *ops.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ops.NewServer(":0", &mockReadiness{err: readyErr}, runs, logger)
}

func get(srv *ops.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(errors.New("no reconciliation run has completed yet"), nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no reconciliation run has completed yet", body["error"])
}

func TestLastRunReturnsRecord(t *testing.T) {
	runs := &mockRuns{rec: &sqlite.RunRecord{
		RunDate:         time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		CompletedAt:     time.Date(2024, 4, 1, 6, 30, 0, 0, time.UTC),
		Projects:        1204,
		IntervalsClosed: 37,
		IntervalsOpened: 52,
	}}
	rec := get(newTestServer(nil, runs), "/runs/latest")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"run_date": "2024-04-01T00:00:00Z",
		"completed_at": "2024-04-01T06:30:00Z",
		"projects": 1204,
		"intervals_closed": 37,
		"intervals_opened": 52
	}`, rec.Body.String())
}

func TestLastRunEmptyStoreReturns404(t *testing.T) {
	rec := get(newTestServer(nil, &mockRuns{}), "/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLastRunWithoutStoreReturns404(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
