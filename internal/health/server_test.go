package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dartwatch/disclosure-ingest/internal/metrics"
)

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLiveAlwaysOK(t *testing.T) {
	t.Parallel()

	s := NewServer(zap.NewNop())
	rec := doRequest(t, s, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyFollowsSetReady(t *testing.T) {
	t.Parallel()

	s := NewServer(zap.NewNop())

	rec := doRequest(t, s, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetReady(true)
	rec = doRequest(t, s, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.SetReady(false)
	rec = doRequest(t, s, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthSnapshotReflectsCounters(t *testing.T) {
	t.Parallel()

	s := NewServer(zap.NewNop())
	s.SetReady(true)
	s.RecordCycle()
	s.RecordOutcomes(5, 2, 1)
	s.RecordOutcomes(3, 0, 0)

	rec := doRequest(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "ok", st.Status)
	assert.True(t, st.Ready)
	assert.Equal(t, int64(1), st.CyclesCompleted)
	assert.Equal(t, int64(8), st.Processed)
	assert.Equal(t, int64(2), st.Skipped)
	assert.Equal(t, int64(1), st.Failed)
	assert.NotEmpty(t, st.LastCycleAt)
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	t.Parallel()

	metrics.Init()
	s := NewServer(zap.NewNop())
	rec := doRequest(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
