package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/smartrouter/router"
)

func TestProbe_HealthyBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"cpu_load": 42.5}`))
	}))
	defer srv.Close()

	b := router.NewBackend("local", "US", srv.URL)
	b.Begin()
	r, err := NewProbe("", 0).Collect(context.Background(), b, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 42.5, r[router.MetricCPULoad])
	assert.Equal(t, 0.0, r[router.MetricPacketLoss])
	assert.Equal(t, 1.0, r[router.MetricActiveRequests])
	assert.GreaterOrEqual(t, r[router.MetricLatency], 0.0)
	assert.GreaterOrEqual(t, r[router.MetricJitter], 0.0)

	_, err = router.NewMetricSnapshot(r, time.Now())
	assert.NoError(t, err)
}

func TestProbe_PartialFailures_ReportLoss(t *testing.T) {
	// GIVEN a backend that fails every second request
	var n atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1)%2 == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"cpu_load": 10}`))
	}))
	defer srv.Close()

	// WHEN probed four times
	r, err := NewProbe("/metrics", 4).Collect(context.Background(), router.NewBackend("flaky", "US", srv.URL), time.Now())

	// THEN half the probes count as lost
	require.NoError(t, err)
	assert.Equal(t, 50.0, r[router.MetricPacketLoss])
}

func TestProbe_AllProbesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewProbe("", 2).Collect(context.Background(), router.NewBackend("down", "US", srv.URL), time.Now())
	assert.Error(t, err)
}

func TestProbe_MissingCPULoad_IsIncomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r, err := NewProbe("", 1).Collect(context.Background(), router.NewBackend("b", "US", srv.URL), time.Now())
	require.NoError(t, err)
	_, err = router.NewMetricSnapshot(r, time.Now())
	assert.ErrorIs(t, err, router.ErrIncompleteSnapshot)
}

func TestProbe_NoAddress(t *testing.T) {
	_, err := NewProbe("", 1).Collect(context.Background(), router.NewBackend("b", "US", ""), time.Now())
	assert.Error(t, err)
}

func TestMeanAbsDelta(t *testing.T) {
	assert.Equal(t, 0.0, meanAbsDelta(nil))
	assert.Equal(t, 0.0, meanAbsDelta([]float64{5}))
	assert.InDelta(t, 3.0, meanAbsDelta([]float64{1, 4, 1}), 1e-12)
}
