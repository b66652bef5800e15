//go:build !cgo

package forecast

import (
	"context"
	"errors"
)

// ErrONNXUnavailable is returned when the binary was built without cgo.
var ErrONNXUnavailable = errors.New("onnx estimator requires a cgo build")

// ONNX is unavailable without cgo.
type ONNX struct{}

// NewONNX always fails without cgo.
func NewONNX(ONNXConfig) (*ONNX, error) { return nil, ErrONNXUnavailable }

// Predict implements router.Estimator.
func (*ONNX) Predict(context.Context, []float64) (float64, error) { return 0, ErrONNXUnavailable }

// Close is a no-op.
func (*ONNX) Close() error { return nil }
