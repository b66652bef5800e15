package forecast

// Default tensor names used by skl2onnx for a single-output regressor.
const (
	DefaultONNXInput  = "float_input"
	DefaultONNXOutput = "variable"
)

// ONNXConfig configures the ONNX estimator.
type ONNXConfig struct {
	ModelPath     string
	SharedLibrary string // path to libonnxruntime; empty uses the library default
	InputName     string
	OutputName    string
	Width         int // feature vector length
}

func (c *ONNXConfig) applyDefaults() {
	if c.InputName == "" {
		c.InputName = DefaultONNXInput
	}
	if c.OutputName == "" {
		c.OutputName = DefaultONNXOutput
	}
}
