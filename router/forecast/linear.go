package forecast

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/smartrouter/router"
)

// LinearModel is the on-disk form of a linear CPU forecast:
//
//	intercept: 3.2
//	coefficients: [0.01, 0.9, ...]
//	features: [latency_ms, cpu_load_percent, ...]   # optional
//
// When features is present it must equal the encoder's column names, which
// catches models trained against a different backend set.
type LinearModel struct {
	Intercept    float64   `yaml:"intercept"`
	Coefficients []float64 `yaml:"coefficients"`
	Features     []string  `yaml:"features"`
}

// Linear predicts intercept + coefficients·features.
type Linear struct {
	intercept    float64
	coefficients []float64
}

// LoadLinear reads a LinearModel from a YAML file and checks it against enc.
func LoadLinear(path string, enc router.FeatureEncoder) (*Linear, error) {
	if path == "" {
		return nil, &router.ConfigurationError{Field: "forecast.model_path", Reason: "required for linear estimator"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading linear model: %w", err)
	}
	var m LinearModel
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing linear model %s: %w", path, err)
	}
	return NewLinear(m, enc)
}

// NewLinear validates m against enc. A width or column-name mismatch is a
// *router.ConfigurationError.
func NewLinear(m LinearModel, enc router.FeatureEncoder) (*Linear, error) {
	if len(m.Coefficients) != enc.Width() {
		return nil, &router.ConfigurationError{
			Field:  "forecast.model_path",
			Reason: fmt.Sprintf("model has %d coefficients, feature encoder produces %d", len(m.Coefficients), enc.Width()),
		}
	}
	if len(m.Features) > 0 {
		want := enc.FeatureNames()
		if len(m.Features) != len(want) {
			return nil, &router.ConfigurationError{Field: "forecast.model_path", Reason: fmt.Sprintf("model lists %d features, encoder has %d", len(m.Features), len(want))}
		}
		for i := range want {
			if m.Features[i] != want[i] {
				return nil, &router.ConfigurationError{
					Field:  "forecast.model_path",
					Reason: fmt.Sprintf("feature %d is %q in the model, %q in the encoder", i, m.Features[i], want[i]),
				}
			}
		}
	}
	return &Linear{intercept: m.Intercept, coefficients: append([]float64(nil), m.Coefficients...)}, nil
}

// Predict implements router.Estimator.
func (l *Linear) Predict(ctx context.Context, features []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(features) != len(l.coefficients) {
		return 0, fmt.Errorf("linear: expected %d features, got %d", len(l.coefficients), len(features))
	}
	return l.intercept + floats.Dot(l.coefficients, features), nil
}
