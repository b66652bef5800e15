package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/smartrouter/router"
)

const (
	DefaultProbePath = "/health"
	DefaultProbes    = 3
)

// probeBody is the JSON a backend's health endpoint reports.
type probeBody struct {
	CPULoad *float64 `json:"cpu_load"`
}

// Probe measures backends over HTTP. Each collection sends Probes GET
// requests to Address+Path:
//   - latency is the mean round trip in ms over successful attempts
//   - jitter is the mean absolute difference between consecutive round trips
//   - packet loss is the percentage of failed attempts
//   - cpu_load comes from the JSON body of the last successful attempt
//
// A backend whose body lacks cpu_load yields an incomplete reading.
type Probe struct {
	client *http.Client
	path   string
	probes int
}

// NewProbe creates an HTTP probe source. Empty path and probes <= 0 take
// defaults. Per-attempt deadlines come from the collection context.
func NewProbe(path string, probes int) *Probe {
	if path == "" {
		path = DefaultProbePath
	}
	if probes <= 0 {
		probes = DefaultProbes
	}
	return &Probe{client: &http.Client{}, path: path, probes: probes}
}

// Collect implements router.TelemetrySource.
func (p *Probe) Collect(ctx context.Context, b *router.Backend, _ time.Time) (router.Reading, error) {
	if b.Address == "" {
		return nil, fmt.Errorf("backend %q has no address to probe", b.Name)
	}
	url := strings.TrimRight(b.Address, "/") + p.path

	rtts := make([]float64, 0, p.probes)
	var cpu *float64
	var lastErr error
	for i := 0; i < p.probes; i++ {
		rtt, body, err := p.probeOnce(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		rtts = append(rtts, rtt)
		if body.CPULoad != nil {
			cpu = body.CPULoad
		}
	}
	if len(rtts) == 0 {
		return nil, fmt.Errorf("all %d probes to %s failed: %w", p.probes, url, lastErr)
	}

	reading := router.Reading{
		router.MetricLatency:        stat.Mean(rtts, nil),
		router.MetricJitter:         meanAbsDelta(rtts),
		router.MetricPacketLoss:     float64(p.probes-len(rtts)) / float64(p.probes) * 100,
		router.MetricActiveRequests: float64(b.ActiveRequests()),
	}
	if cpu != nil {
		reading[router.MetricCPULoad] = *cpu
	}
	return reading, nil
}

func (p *Probe) probeOnce(ctx context.Context, url string) (float64, probeBody, error) {
	var body probeBody
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, body, fmt.Errorf("request creation error: %w", err)
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, body, fmt.Errorf("HTTP error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	rtt := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		return 0, body, fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, body, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return 0, body, fmt.Errorf("JSON parse error: %w", err)
		}
	}
	return rtt, body, nil
}

// meanAbsDelta returns the mean |x[i] - x[i-1]|; 0 for fewer than two samples.
func meanAbsDelta(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(xs); i++ {
		sum += math.Abs(xs[i] - xs[i-1])
	}
	return sum / float64(len(xs)-1)
}
