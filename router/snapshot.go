package router

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Metric names a scoring dimension. The names double as YAML/JSON keys.
type Metric string

const (
	MetricLatency          Metric = "latency"            // ms
	MetricCPULoad          Metric = "cpu_load"           // percent
	MetricPacketLoss       Metric = "packet_loss"        // percent
	MetricJitter           Metric = "jitter"             // ms
	MetricActiveRequests   Metric = "active_requests"    // count
	MetricPredictedCPULoad Metric = "predicted_cpu_load" // percent, set only during ENRICH
)

// AllMetrics lists every metric in canonical order. Scoring iterates in this
// order so that floating-point sums are reproducible bit for bit.
var AllMetrics = []Metric{
	MetricLatency,
	MetricCPULoad,
	MetricPacketLoss,
	MetricJitter,
	MetricActiveRequests,
	MetricPredictedCPULoad,
}

// BaseMetrics are the metrics every reading must carry.
var BaseMetrics = AllMetrics[:5]

var metricIndex = func() map[Metric]int {
	m := make(map[Metric]int, len(AllMetrics))
	for i, name := range AllMetrics {
		m[name] = i
	}
	return m
}()

// IsValidMetric returns true if name is a recognized metric.
func IsValidMetric(name string) bool {
	_, ok := metricIndex[Metric(name)]
	return ok
}

// ValidMetricNames returns sorted valid metric names.
func ValidMetricNames() []string {
	names := make([]string, 0, len(AllMetrics))
	for _, m := range AllMetrics {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return names
}

// percentMetrics are bounded above by 100 at ingest.
var percentMetrics = map[Metric]bool{
	MetricCPULoad:    true,
	MetricPacketLoss: true,
}

// Reading is the raw output of a Telemetry Source. Keys may be missing;
// NewMetricSnapshot decides whether the reading is usable.
type Reading map[Metric]float64

// MetricSnapshot is one consistent, immutable reading of one backend taken
// for one decision cycle.
type MetricSnapshot struct {
	at            time.Time
	values        [6]float64 // indexed like AllMetrics
	hasPrediction bool
}

// NewMetricSnapshot validates a raw reading and freezes it into a snapshot
// stamped with the cycle time. Every base metric must be present, finite and
// non-negative; percentages must not exceed 100. Any predicted_cpu_load key
// in the reading is ignored: only the ENRICH stage sets the forecast.
func NewMetricSnapshot(r Reading, at time.Time) (MetricSnapshot, error) {
	s := MetricSnapshot{at: at}
	for _, m := range BaseMetrics {
		v, ok := r[m]
		if !ok {
			return MetricSnapshot{}, fmt.Errorf("%w: missing %s", ErrIncompleteSnapshot, m)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return MetricSnapshot{}, fmt.Errorf("%w: %s=%v out of range", ErrIncompleteSnapshot, m, v)
		}
		if percentMetrics[m] && v > 100 {
			return MetricSnapshot{}, fmt.Errorf("%w: %s=%v exceeds 100%%", ErrIncompleteSnapshot, m, v)
		}
		s.values[metricIndex[m]] = v
	}
	return s, nil
}

// At returns the logical cycle timestamp the snapshot was stamped with.
func (s MetricSnapshot) At() time.Time { return s.at }

// Value returns the metric's value and whether it is present.
// Base metrics are always present on a snapshot built by NewMetricSnapshot.
func (s MetricSnapshot) Value(m Metric) (float64, bool) {
	idx, ok := metricIndex[m]
	if !ok {
		return 0, false
	}
	if m == MetricPredictedCPULoad && !s.hasPrediction {
		return 0, false
	}
	return s.values[idx], true
}

func (s MetricSnapshot) Latency() float64    { return s.values[0] }
func (s MetricSnapshot) CPULoad() float64    { return s.values[1] }
func (s MetricSnapshot) PacketLoss() float64 { return s.values[2] }
func (s MetricSnapshot) Jitter() float64     { return s.values[3] }
func (s MetricSnapshot) ActiveRequests() int { return int(s.values[4]) }

// PredictedCPULoad returns the forecast and whether ENRICH supplied one.
func (s MetricSnapshot) PredictedCPULoad() (float64, bool) {
	return s.values[5], s.hasPrediction
}

// WithPrediction returns a copy of s carrying the forecast, clamped to [0,100].
func (s MetricSnapshot) WithPrediction(v float64) MetricSnapshot {
	s.values[5] = math.Max(0, math.Min(100, v))
	s.hasPrediction = true
	return s
}

type snapshotJSON struct {
	Timestamp        time.Time `json:"timestamp"`
	Latency          float64   `json:"latency"`
	CPULoad          float64   `json:"cpu_load"`
	PacketLoss       float64   `json:"packet_loss"`
	Jitter           float64   `json:"jitter"`
	ActiveRequests   int       `json:"active_requests"`
	PredictedCPULoad *float64  `json:"predicted_cpu_load,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s MetricSnapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Timestamp:      s.at,
		Latency:        s.Latency(),
		CPULoad:        s.CPULoad(),
		PacketLoss:     s.PacketLoss(),
		Jitter:         s.Jitter(),
		ActiveRequests: s.ActiveRequests(),
	}
	if p, ok := s.PredictedCPULoad(); ok {
		out.PredictedCPULoad = &p
	}
	return json.Marshal(out)
}
