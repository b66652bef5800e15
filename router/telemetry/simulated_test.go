package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/smartrouter/router"
)

var noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestSimulated_ValuesWithinRanges(t *testing.T) {
	src, err := NewSimulated(7, 0)
	require.NoError(t, err)
	b := router.NewBackend("us-east", "US", "")

	for i := 0; i < 200; i++ {
		r, err := src.Collect(context.Background(), b, noon.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)

		assert.GreaterOrEqual(t, r[router.MetricLatency], 20.0)
		assert.LessOrEqual(t, r[router.MetricLatency], 100.0)
		assert.GreaterOrEqual(t, r[router.MetricCPULoad], 0.0)
		assert.LessOrEqual(t, r[router.MetricCPULoad], 100.0)
		assert.GreaterOrEqual(t, r[router.MetricPacketLoss], 0.0)
		assert.Less(t, r[router.MetricPacketLoss], 5.0)
		assert.GreaterOrEqual(t, r[router.MetricJitter], 0.0)
		assert.Less(t, r[router.MetricJitter], 10.0)

		_, err = router.NewMetricSnapshot(r, noon)
		assert.NoError(t, err, "simulated readings are always complete")
	}
}

func TestSimulated_SameSeed_SamePerBackendSequence_RegardlessOfOrder(t *testing.T) {
	// GIVEN two sources with the same seed
	a, err := NewSimulated(42, 0)
	require.NoError(t, err)
	b, err := NewSimulated(42, 0)
	require.NoError(t, err)
	x := router.NewBackend("x", "Europe", "")
	y := router.NewBackend("y", "Asia", "")
	ctx := context.Background()

	// WHEN backends are collected in opposite orders
	ax, _ := a.Collect(ctx, x, noon)
	ay, _ := a.Collect(ctx, y, noon)
	by, _ := b.Collect(ctx, y, noon)
	bx, _ := b.Collect(ctx, x, noon)

	// THEN each backend sees the same values
	assert.Equal(t, ax, bx)
	assert.Equal(t, ay, by)
}

func TestSimulated_ActiveRequestsFromBackendCounter(t *testing.T) {
	src, err := NewSimulated(1, 0)
	require.NoError(t, err)
	b := router.NewBackend("a", "US", "")
	b.Begin()
	b.Begin()

	r, err := src.Collect(context.Background(), b, noon)
	require.NoError(t, err)
	assert.Equal(t, 2.0, r[router.MetricActiveRequests])
}

func TestSimulated_FailureRateOne_AlwaysFails(t *testing.T) {
	src, err := NewSimulated(1, 1)
	require.NoError(t, err)
	_, err = src.Collect(context.Background(), router.NewBackend("a", "US", ""), noon)
	assert.Error(t, err)
}

func TestNewSimulated_InvalidFailureRate(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.5} {
		_, err := NewSimulated(1, rate)
		assert.True(t, router.IsConfigurationError(err), "rate %v", rate)
	}
}

func TestSimulated_CancelledContext(t *testing.T) {
	src, err := NewSimulated(1, 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Collect(ctx, router.NewBackend("a", "US", ""), noon)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_SelectsSource(t *testing.T) {
	src, err := New(router.TelemetryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Simulated{}, src)

	src, err = New(router.TelemetryConfig{Source: "probe"})
	require.NoError(t, err)
	assert.IsType(t, &Probe{}, src)

	_, err = New(router.TelemetryConfig{Source: "replay"})
	assert.True(t, router.IsConfigurationError(err), "replay without a path is a configuration error")
}
