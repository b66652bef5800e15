package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/inference-sim/smartrouter/router"
)

// Simulated synthesizes telemetry: a regional diurnal CPU pattern with ±5
// points of noise, latency uniform in [20,100] ms, packet loss in [0,5)%,
// jitter in [0,10) ms, and the backend's live request counter.
//
// Each backend draws from its own partitioned RNG, so a given seed yields the
// same per-backend sequence whatever order collections run in.
type Simulated struct {
	rng         *router.PartitionedRNG
	failureRate float64

	mu sync.Mutex
}

// NewSimulated creates a simulated source. failureRate in [0,1] injects
// collection errors for demos.
func NewSimulated(seed int64, failureRate float64) (*Simulated, error) {
	if failureRate < 0 || failureRate > 1 || math.IsNaN(failureRate) {
		return nil, &router.ConfigurationError{
			Field:  "telemetry.failure_rate",
			Reason: fmt.Sprintf("must be in [0,1], got %v", failureRate),
		}
	}
	return &Simulated{rng: router.NewPartitionedRNG(seed), failureRate: failureRate}, nil
}

// Collect implements router.TelemetrySource.
func (s *Simulated) Collect(ctx context.Context, b *router.Backend, at time.Time) (router.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rng := s.rng.ForSubsystem(router.SubsystemBackend(b.Name))
	if s.failureRate > 0 && rng.Float64() < s.failureRate {
		return nil, fmt.Errorf("simulated probe of %s timed out", b.Name)
	}

	profile := router.RegionProfile(b.Region)
	noise := rng.Float64()*10 - 5
	cpu := math.Max(0, math.Min(100, profile.LoadAt(float64(at.Hour()))+noise))

	return router.Reading{
		router.MetricLatency:        float64(20 + rng.Intn(81)),
		router.MetricCPULoad:        cpu,
		router.MetricPacketLoss:     rng.Float64() * 5,
		router.MetricJitter:         rng.Float64() * 10,
		router.MetricActiveRequests: float64(b.ActiveRequests()),
	}, nil
}
