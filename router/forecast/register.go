// register.go wires router/forecast constructors into the router package's
// registration variable (NewEstimatorFunc). Importing router/forecast for
// side effects makes every estimator name in ForecastConfig buildable.
package forecast

import (
	"fmt"

	"github.com/inference-sim/smartrouter/router"
)

func init() {
	router.NewEstimatorFunc = New
}

// New builds the Forecast Estimator named by cfg.Estimator.
// The encoder fixes the feature width and the one-hot backend order.
func New(cfg router.ForecastConfig, enc router.FeatureEncoder) (router.Estimator, error) {
	switch cfg.Estimator {
	case "zero":
		return Zero{}, nil
	case "diurnal":
		return nonNil(NewDiurnal(enc, cfg.Profiles, cfg.Alpha))
	case "linear":
		return nonNil(LoadLinear(cfg.ModelPath, enc))
	case "onnx":
		return nonNil(NewONNX(ONNXConfig{
			ModelPath:     cfg.ModelPath,
			SharedLibrary: cfg.SharedLibrary,
			InputName:     cfg.InputName,
			OutputName:    cfg.OutputName,
			Width:         enc.Width(),
		}))
	default:
		return nil, fmt.Errorf("unknown estimator %q", cfg.Estimator)
	}
}

// nonNil keeps a failed constructor's typed nil pointer out of the interface.
func nonNil[E router.Estimator](e E, err error) (router.Estimator, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}
