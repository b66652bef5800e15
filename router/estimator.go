package router

import (
	"context"
	"time"
)

// Estimator predicts a near-future CPU load from a feature vector built by
// FeatureEncoder. It is loaded once at startup and is stateless from the
// loop's point of view.
type Estimator interface {
	Predict(ctx context.Context, features []float64) (float64, error)
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(ctx context.Context, features []float64) (float64, error)

// Predict implements Estimator.
func (f EstimatorFunc) Predict(ctx context.Context, features []float64) (float64, error) {
	return f(ctx, features)
}

// ForecastConfig selects and configures a Forecast Estimator.
type ForecastConfig struct {
	Estimator string        `yaml:"estimator"` // none | zero | diurnal | linear | onnx
	Timeout   time.Duration `yaml:"timeout"`
	ModelPath string        `yaml:"model_path"` // linear (YAML) or onnx model file

	// Diurnal estimator: one profile per backend, keyed by backend name.
	Profiles map[string]DiurnalProfile `yaml:"profiles"`
	Alpha    float64                   `yaml:"alpha"`

	// ONNX estimator.
	SharedLibrary string `yaml:"shared_library"`
	InputName     string `yaml:"input_name"`
	OutputName    string `yaml:"output_name"`
}

// NewEstimatorFunc is set by router/forecast's init().
// The encoder tells implementations the feature width and one-hot order.
var NewEstimatorFunc func(cfg ForecastConfig, enc FeatureEncoder) (Estimator, error)

var validEstimators = map[string]bool{
	"":        true, // no forecast
	"none":    true,
	"zero":    true,
	"diurnal": true,
	"linear":  true,
	"onnx":    true,
}

// IsValidEstimator returns true if name is a recognized estimator.
func IsValidEstimator(name string) bool { return validEstimators[name] }

// NewEstimator builds the configured estimator. Returns (nil, nil) when no
// estimator is configured. Panics if router/forecast has not been imported.
func NewEstimator(cfg ForecastConfig, enc FeatureEncoder) (Estimator, error) {
	if !IsValidEstimator(cfg.Estimator) {
		return nil, configErrorf("forecast.estimator", "unknown estimator %q; valid: %v", cfg.Estimator, validNamesList(validEstimators))
	}
	if cfg.Estimator == "" || cfg.Estimator == "none" {
		return nil, nil
	}
	if NewEstimatorFunc == nil {
		panic("NewEstimatorFunc not registered: import router/forecast")
	}
	return NewEstimatorFunc(cfg, enc)
}
