package router

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WeightTolerance is the allowed deviation of the weight sum from 1.0.
const WeightTolerance = 1e-6

// weightSumSlack absorbs float64 rounding so that sums written with six
// decimals (0.999999, 1.000001) sit inside WeightTolerance.
const weightSumSlack = 1e-12

// WeightConfig maps a metric to its non-negative weight. Its keys define
// exactly which metrics participate in scoring.
type WeightConfig map[Metric]float64

// NormalizationBounds maps a metric to the raw value treated as worst case.
type NormalizationBounds map[Metric]float64

// Sum returns the total weight, accumulated in canonical metric order.
func (w WeightConfig) Sum() float64 {
	total := 0.0
	for _, m := range AllMetrics {
		total += w[m]
	}
	return total
}

// DefaultWeights returns the shipped weight profile.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		MetricLatency:          0.35,
		MetricCPULoad:          0.20,
		MetricPredictedCPULoad: 0.20,
		MetricPacketLoss:       0.15,
		MetricJitter:           0.10,
	}
}

// DefaultBounds returns worst-case values matching the telemetry ranges the
// simulated source produces (latency 20-100ms, loss 0-5%, jitter 0-10ms).
func DefaultBounds() NormalizationBounds {
	return NormalizationBounds{
		MetricLatency:          200,
		MetricCPULoad:          100,
		MetricPacketLoss:       5,
		MetricJitter:           10,
		MetricActiveRequests:   50,
		MetricPredictedCPULoad: 100,
	}
}

// ParseWeights parses a comma-separated string of "metric:weight" pairs.
// Returns nil for empty input. Returns error for unknown metrics, duplicates,
// negative, NaN or Inf weights, or malformed input. The sum is not checked
// here; NewScoringConfig does that.
func ParseWeights(s string) (WeightConfig, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	weights := make(WeightConfig, len(parts))
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid weight %q (expected metric:weight)", strings.TrimSpace(part))
		}
		name := strings.TrimSpace(kv[0])
		if !IsValidMetric(name) {
			return nil, fmt.Errorf("unknown metric %q; valid: %s", name, strings.Join(ValidMetricNames(), ", "))
		}
		if _, dup := weights[Metric(name)]; dup {
			return nil, fmt.Errorf("duplicate metric %q; each metric may appear at most once", name)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for metric %q: %w", name, err)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("metric %q weight must be a finite non-negative number, got %v", name, w)
		}
		weights[Metric(name)] = w
	}
	return weights, nil
}

// ScoringConfig is a validated (WeightConfig, NormalizationBounds) pair.
// Construct it with NewScoringConfig; it is immutable afterwards.
type ScoringConfig struct {
	weights WeightConfig
	bounds  NormalizationBounds
}

// NewScoringConfig validates weights and bounds. Every violation is a
// *ConfigurationError: unknown metric, negative or non-finite weight, weights
// not summing to 1.0 within WeightTolerance, a weighted metric without a
// bound, or a zero, negative or non-finite bound.
func NewScoringConfig(weights WeightConfig, bounds NormalizationBounds) (ScoringConfig, error) {
	if len(weights) == 0 {
		return ScoringConfig{}, configErrorf("weights", "at least one metric must be weighted")
	}
	for m, w := range weights {
		if !IsValidMetric(string(m)) {
			return ScoringConfig{}, configErrorf("weights", "unknown metric %q", m)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return ScoringConfig{}, configErrorf("weights."+string(m), "must be a finite non-negative number, got %v", w)
		}
	}
	if sum := weights.Sum(); math.Abs(sum-1.0) > WeightTolerance+weightSumSlack {
		return ScoringConfig{}, configErrorf("weights", "must sum to 1.0 (±%g), got %v", WeightTolerance, sum)
	}
	for m := range bounds {
		if !IsValidMetric(string(m)) {
			return ScoringConfig{}, configErrorf("bounds", "unknown metric %q", m)
		}
	}
	for _, m := range AllMetrics {
		if _, weighted := weights[m]; !weighted {
			continue
		}
		b, ok := bounds[m]
		if !ok {
			return ScoringConfig{}, configErrorf("bounds."+string(m), "missing normalization bound for weighted metric")
		}
		if b <= 0 || math.IsNaN(b) || math.IsInf(b, 0) {
			return ScoringConfig{}, configErrorf("bounds."+string(m), "must be a finite positive number, got %v", b)
		}
	}

	cfg := ScoringConfig{
		weights: make(WeightConfig, len(weights)),
		bounds:  make(NormalizationBounds, len(bounds)),
	}
	for m, w := range weights {
		cfg.weights[m] = w
	}
	for m, b := range bounds {
		cfg.bounds[m] = b
	}
	return cfg, nil
}

// MustScoringConfig is like NewScoringConfig but panics on error.
// Intended for tests and package-level defaults.
func MustScoringConfig(weights WeightConfig, bounds NormalizationBounds) ScoringConfig {
	cfg, err := NewScoringConfig(weights, bounds)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Weight returns the configured weight for m (0 if unweighted).
func (c ScoringConfig) Weight(m Metric) float64 { return c.weights[m] }

// Bound returns the normalization bound for m.
func (c ScoringConfig) Bound(m Metric) (float64, bool) {
	b, ok := c.bounds[m]
	return b, ok
}

// Weighted reports whether m participates in scoring.
func (c ScoringConfig) Weighted(m Metric) bool {
	_, ok := c.weights[m]
	return ok
}

// ForecastEnabled reports whether ENRICH must run: predicted_cpu_load is
// weighted with a non-zero weight.
func (c ScoringConfig) ForecastEnabled() bool {
	return c.weights[MetricPredictedCPULoad] > 0
}

// Weights returns a copy of the weight map.
func (c ScoringConfig) Weights() WeightConfig {
	cp := make(WeightConfig, len(c.weights))
	for m, w := range c.weights {
		cp[m] = w
	}
	return cp
}

// Bounds returns a copy of the bounds map.
func (c ScoringConfig) Bounds() NormalizationBounds {
	cp := make(NormalizationBounds, len(c.bounds))
	for m, b := range c.bounds {
		cp[m] = b
	}
	return cp
}

// WithoutForecast returns a copy of c with the predicted_cpu_load weight
// forced to 0, so every forecast contributes nothing. The weight sum is not
// re-checked.
func (c ScoringConfig) WithoutForecast() ScoringConfig {
	cp := ScoringConfig{weights: c.Weights(), bounds: c.Bounds()}
	if _, ok := cp.weights[MetricPredictedCPULoad]; ok {
		cp.weights[MetricPredictedCPULoad] = 0
	}
	return cp
}
