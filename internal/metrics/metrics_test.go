package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/neurorisk/internal/assessment"
	"github.com/Skufu/neurorisk/internal/metrics"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveAssessment("parkinson", assessment.SourceFallback)
	m.ObserveAssessment("parkinson", assessment.SourceFallback)
	m.ObserveAssessment("alzheimer", assessment.SourceRemote)
	m.ObserveRemoteFailure("parkinson")
	m.ObserveRemoteLatency("parkinson", "error", 30*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "neurorisk_assessments_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per test/source pair")

	count, err = testutil.GatherAndCount(reg, "neurorisk_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandler_ServesExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveRemoteFailure("alzheimer")

	srv := httptest.NewServer(metrics.Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `neurorisk_remote_failures_total{test="alzheimer"} 1`)
}
