package router

import (
	"context"
	"sort"
	"time"
)

// TelemetrySource produces a fresh reading for one backend. Implementations
// must honor ctx cancellation; the loop bounds every call with a timeout.
// Production sources probe real backends; the demo source synthesizes values.
type TelemetrySource interface {
	Collect(ctx context.Context, b *Backend, at time.Time) (Reading, error)
}

// TelemetryConfig selects and configures a Telemetry Source.
type TelemetryConfig struct {
	Source      string        `yaml:"source"` // simulated | replay | probe
	Timeout     time.Duration `yaml:"timeout"`
	Seed        int64         `yaml:"seed"`
	FailureRate float64       `yaml:"failure_rate"` // simulated only
	ReplayPath  string        `yaml:"replay_path"`
	ProbePath   string        `yaml:"probe_path"`
	Probes      int           `yaml:"probes"`
}

// NewTelemetrySourceFunc is set by router/telemetry's init().
var NewTelemetrySourceFunc func(cfg TelemetryConfig) (TelemetrySource, error)

// validTelemetrySources maps source names to validity.
var validTelemetrySources = map[string]bool{
	"":          true, // defaults to simulated
	"simulated": true,
	"replay":    true,
	"probe":     true,
}

// IsValidTelemetrySource returns true if name is a recognized source.
func IsValidTelemetrySource(name string) bool { return validTelemetrySources[name] }

// NewTelemetrySource builds the configured source.
// Panics if router/telemetry has not been imported.
func NewTelemetrySource(cfg TelemetryConfig) (TelemetrySource, error) {
	if !IsValidTelemetrySource(cfg.Source) {
		return nil, configErrorf("telemetry.source", "unknown source %q; valid: %v", cfg.Source, validNamesList(validTelemetrySources))
	}
	if NewTelemetrySourceFunc == nil {
		panic("NewTelemetrySourceFunc not registered: import router/telemetry")
	}
	return NewTelemetrySourceFunc(cfg)
}

// TelemetrySourceFunc adapts a function to TelemetrySource.
type TelemetrySourceFunc func(ctx context.Context, b *Backend, at time.Time) (Reading, error)

// Collect implements TelemetrySource.
func (f TelemetrySourceFunc) Collect(ctx context.Context, b *Backend, at time.Time) (Reading, error) {
	return f(ctx, b, at)
}

// validNamesList returns the sorted non-empty keys of a validity map.
func validNamesList(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		if n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
