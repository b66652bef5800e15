package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testTime is a Monday at 14:00 UTC.
var testTime = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

// reading builds a complete Reading from the five base metrics.
func reading(latency, cpu, loss, jitter, active float64) Reading {
	return Reading{
		MetricLatency:        latency,
		MetricCPULoad:        cpu,
		MetricPacketLoss:     loss,
		MetricJitter:         jitter,
		MetricActiveRequests: active,
	}
}

func mustSnapshot(t *testing.T, r Reading) MetricSnapshot {
	t.Helper()
	s, err := NewMetricSnapshot(r, testTime)
	require.NoError(t, err)
	return s
}

func mustRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	backends := make([]*Backend, len(names))
	for i, n := range names {
		backends[i] = NewBackend(n, "US", "")
	}
	reg, err := NewRegistry(backends...)
	require.NoError(t, err)
	return reg
}

func latencyOnly(t *testing.T) ScoringConfig {
	t.Helper()
	cfg, err := NewScoringConfig(WeightConfig{MetricLatency: 1.0}, NormalizationBounds{MetricLatency: 100})
	require.NoError(t, err)
	return cfg
}
