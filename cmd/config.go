package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/smartrouter/router"
	"github.com/inference-sim/smartrouter/router/metrics"
	"github.com/inference-sim/smartrouter/router/trace"
)

// BackendConfig declares one candidate server.
type BackendConfig struct {
	Name    string `yaml:"name"`
	Region  string `yaml:"region"`
	Address string `yaml:"address"`
}

// LoopSettings tunes the Decision Loop.
type LoopSettings struct {
	Interval        time.Duration `yaml:"interval"`
	CollectTimeout  time.Duration `yaml:"collect_timeout"`
	ForecastTimeout time.Duration `yaml:"forecast_timeout"`
	Parallelism     int           `yaml:"parallelism"`
}

// DecisionLogConfig configures the in-memory log and its optional CSV file.
type DecisionLogConfig struct {
	Level       string `yaml:"level"`
	Capacity    int    `yaml:"capacity"`
	CandidatesK int    `yaml:"candidates_k"`
	CSVPath     string `yaml:"csv_path"`
}

// Config represents the full router.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Backends    []BackendConfig            `yaml:"backends"`
	Weights     router.WeightConfig        `yaml:"weights"`
	Bounds      router.NormalizationBounds `yaml:"bounds"`
	Telemetry   router.TelemetryConfig     `yaml:"telemetry"`
	Forecast    router.ForecastConfig      `yaml:"forecast"`
	Loop        LoopSettings               `yaml:"loop"`
	DecisionLog DecisionLogConfig          `yaml:"decision_log"`
}

// DefaultConfig is the demo setup: four simulated servers, one
// per region, the shipped weights, and the diurnal forecast.
func DefaultConfig() Config {
	return Config{
		Backends: []BackendConfig{
			{Name: "Server1", Region: "US"},
			{Name: "Server2", Region: "Europe"},
			{Name: "Server3", Region: "Asia"},
			{Name: "Server4", Region: "India"},
		},
		Weights:     router.DefaultWeights(),
		Bounds:      router.DefaultBounds(),
		Telemetry:   router.TelemetryConfig{Source: "simulated", Seed: 42},
		Forecast:    router.ForecastConfig{Estimator: "diurnal"},
		DecisionLog: DecisionLogConfig{Level: string(trace.LevelCandidates), Capacity: trace.DefaultCapacity},
	}
}

// loadConfig parses a router.yaml over DefaultConfig. An empty path returns
// the defaults. Sections present in the file replace the defaults wholesale
// for maps and lists. Uses strict field checking: typos are errors.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return parseConfig(data, cfg)
}

func parseConfig(data []byte, cfg Config) (Config, error) {
	// Maps would otherwise merge with the defaults.
	var probe struct {
		Weights map[string]any `yaml:"weights"`
		Bounds  map[string]any `yaml:"bounds"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Config{}, fmt.Errorf("parsing config YAML: %w", err)
	}
	if probe.Weights != nil {
		cfg.Weights = nil
	}
	if probe.Bounds != nil {
		cfg.Bounds = nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// validate checks what the router package constructors do not.
func (c Config) validate() error {
	if len(c.Backends) == 0 {
		return &router.ConfigurationError{Field: "backends", Reason: "at least one backend is required"}
	}
	if !router.IsValidTelemetrySource(c.Telemetry.Source) {
		return &router.ConfigurationError{Field: "telemetry.source", Reason: fmt.Sprintf("unknown source %q", c.Telemetry.Source)}
	}
	if !router.IsValidEstimator(c.Forecast.Estimator) {
		return &router.ConfigurationError{Field: "forecast.estimator", Reason: fmt.Sprintf("unknown estimator %q", c.Forecast.Estimator)}
	}
	if !trace.IsValidLevel(c.DecisionLog.Level) {
		return &router.ConfigurationError{Field: "decision_log.level", Reason: fmt.Sprintf("unknown level %q", c.DecisionLog.Level)}
	}
	if c.Loop.Interval < 0 || c.Loop.CollectTimeout < 0 || c.Loop.ForecastTimeout < 0 {
		return &router.ConfigurationError{Field: "loop", Reason: "durations must not be negative"}
	}
	return nil
}

// Router bundles everything built from a Config.
type Router struct {
	Loop    *router.Loop
	Log     *trace.DecisionLog
	Metrics *metrics.Recorder
	Config  Config

	closers []func() error
}

// Close releases the CSV decision log and the estimator's runtime session, if any.
func (r *Router) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildRouter turns a Config into a running Loop. Every validation failure
// comes back as a *router.ConfigurationError or a wrapped I/O error.
func buildRouter(cfg Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	backends := make([]*router.Backend, len(cfg.Backends))
	names := make([]string, len(cfg.Backends))
	for i, b := range cfg.Backends {
		backends[i] = router.NewBackend(b.Name, b.Region, b.Address)
		names[i] = b.Name
	}
	reg, err := router.NewRegistry(backends...)
	if err != nil {
		return nil, &router.ConfigurationError{Field: "backends", Reason: err.Error()}
	}

	scoring, err := router.NewScoringConfig(cfg.Weights, cfg.Bounds)
	if err != nil {
		return nil, err
	}
	source, err := router.NewTelemetrySource(cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	enc := router.NewFeatureEncoder(names)
	est, err := router.NewEstimator(cfg.Forecast, enc)
	if err != nil {
		return nil, err
	}

	r := &Router{Metrics: metrics.NewRecorder(), Config: cfg}
	if c, ok := est.(io.Closer); ok {
		r.closers = append(r.closers, c.Close)
	}
	var sink *trace.CSVWriter
	if cfg.DecisionLog.CSVPath != "" {
		f, err := os.Create(cfg.DecisionLog.CSVPath)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("creating decision log CSV: %w", err)
		}
		r.closers = append(r.closers, f.Close)
		sink = trace.NewCSVWriter(f)
	}
	r.Log = trace.NewDecisionLog(trace.Config{
		Level:       trace.Level(cfg.DecisionLog.Level),
		Capacity:    cfg.DecisionLog.Capacity,
		CandidatesK: cfg.DecisionLog.CandidatesK,
	}, sink)

	collectTimeout := cfg.Loop.CollectTimeout
	if collectTimeout == 0 {
		collectTimeout = cfg.Telemetry.Timeout
	}
	forecastTimeout := cfg.Loop.ForecastTimeout
	if forecastTimeout == 0 {
		forecastTimeout = cfg.Forecast.Timeout
	}
	r.Loop, err = router.NewLoop(router.LoopConfig{
		Registry:        reg,
		Source:          source,
		Estimator:       est,
		Scoring:         scoring,
		Encoder:         enc,
		Log:             r.Log,
		Metrics:         r.Metrics,
		CollectTimeout:  collectTimeout,
		ForecastTimeout: forecastTimeout,
		Parallelism:     cfg.Loop.Parallelism,
	})
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	logrus.Infof("router ready: %d backends, source=%s, estimator=%s, weights=%v",
		reg.Len(), sourceName(cfg.Telemetry.Source), estimatorName(cfg.Forecast.Estimator), scoring.Weights())
	return r, nil
}

func sourceName(s string) string {
	if s == "" {
		return "simulated"
	}
	return s
}

func estimatorName(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
