// Package router provides the scoring and decision engine for smartrouter.
//
// # Reading Guide
//
// Start with these files to understand one decision cycle:
//   - snapshot.go: MetricSnapshot, the immutable per-backend reading
//   - weights.go: WeightConfig and NormalizationBounds validation
//   - scoring.go: the pure Score function and tie-breaking selection
//   - loop.go: the COLLECT → ENRICH → SCORE → SELECT → EMIT cycle
//
// # Architecture
//
// The router package defines interfaces and data types; implementations live
// in sub-packages:
//   - router/telemetry/: Telemetry Sources (simulated, CSV replay, HTTP probe)
//   - router/forecast/: Forecast Estimators (zero, diurnal, linear, ONNX)
//   - router/trace/: Decision Log recording and summaries
//   - router/metrics/: Prometheus collectors
//
// Sub-packages register their constructors via init() functions that set
// package-level factory variables (NewTelemetrySourceFunc, NewEstimatorFunc).
//
// Scores are costs in [0,1]: lower is better.
package router
