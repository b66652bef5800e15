//go:build cgo

package forecast

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/inference-sim/smartrouter/router"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initRuntime initializes the process-wide ONNX Runtime environment once.
func initRuntime(sharedLibrary string) error {
	ortInitOnce.Do(func() {
		if sharedLibrary != "" {
			ort.SetSharedLibraryPath(sharedLibrary)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortInitErr = fmt.Errorf("initializing onnxruntime: %w", err)
			return
		}
		logrus.Infof("onnxruntime environment initialized (library %q)", sharedLibrary)
	})
	return ortInitErr
}

// ONNX serves a regressor exported to ONNX. The session is created once and
// runs one [1, width] float32 input per Predict; Run calls are serialized.
type ONNX struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	width   int
}

// NewONNX loads the model and opens a session.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	cfg.applyDefaults()
	if cfg.ModelPath == "" {
		return nil, &router.ConfigurationError{Field: "forecast.model_path", Reason: "required for onnx estimator"}
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx model: %w", err)
	}
	if err := initRuntime(cfg.SharedLibrary); err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("creating onnx session for %s: %w", cfg.ModelPath, err)
	}
	return &ONNX{session: session, width: cfg.Width}, nil
}

// Predict implements router.Estimator.
func (o *ONNX) Predict(ctx context.Context, features []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(features) != o.width {
		return 0, fmt.Errorf("onnx: expected %d features, got %d", o.width, len(features))
	}
	data := make([]float32, len(features))
	for i, f := range features {
		data[i] = float32(f)
	}
	input, err := ort.NewTensor(ort.NewShape(1, int64(len(data))), data)
	if err != nil {
		return 0, fmt.Errorf("onnx input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("onnx output tensor: %w", err)
	}
	defer func() { _ = output.Destroy() }()

	o.mu.Lock()
	err = o.session.Run([]ort.Value{input}, []ort.Value{output})
	o.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("onnx inference: %w", err)
	}
	out := output.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("onnx inference returned no values")
	}
	return float64(out[0]), nil
}

// Close releases the session.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Destroy()
}
