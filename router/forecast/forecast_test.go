package forecast

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/smartrouter/router"
)

// monday15 is a Monday at 15:00 UTC.
var monday15 = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func snapshot(t *testing.T, cpu float64) router.MetricSnapshot {
	t.Helper()
	s, err := router.NewMetricSnapshot(router.Reading{
		router.MetricLatency:        50,
		router.MetricCPULoad:        cpu,
		router.MetricPacketLoss:     1,
		router.MetricJitter:         2,
		router.MetricActiveRequests: 3,
	}, monday15)
	require.NoError(t, err)
	return s
}

func TestZero_AlwaysZero(t *testing.T) {
	got, err := Zero{}.Predict(context.Background(), []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestDiurnal_UsesBackendProfileFromOneHot(t *testing.T) {
	// GIVEN two backends with different profiles
	enc := router.NewFeatureEncoder([]string{"eu", "asia"})
	profiles := map[string]router.DiurnalProfile{
		"eu":   router.RegionProfile("Europe"),
		"asia": router.RegionProfile("Asia"),
	}
	d, err := NewDiurnal(enc, profiles, 0.5)
	require.NoError(t, err)

	// WHEN both report the same CPU at 15:00
	eu, err := d.Predict(context.Background(), enc.Encode("eu", snapshot(t, 60), monday15))
	require.NoError(t, err)
	asia, err := d.Predict(context.Background(), enc.Encode("asia", snapshot(t, 60), monday15))
	require.NoError(t, err)

	// THEN each blends current CPU with its own profile at 16:00
	assert.InDelta(t, 0.5*60+0.5*profiles["eu"].LoadAt(16), eu, 1e-9)
	assert.InDelta(t, 0.5*60+0.5*profiles["asia"].LoadAt(16), asia, 1e-9)
	assert.NotEqual(t, eu, asia)
}

func TestDiurnal_UnknownBackend_UsesDefaultProfile(t *testing.T) {
	enc := router.NewFeatureEncoder([]string{"a"})
	d, err := NewDiurnal(enc, nil, 1)
	require.NoError(t, err)

	got, err := d.Predict(context.Background(), enc.Encode("late-joiner", snapshot(t, 25), monday15))
	require.NoError(t, err)
	assert.Equal(t, 25.0, got, "alpha=1 returns current CPU")
}

func TestDiurnal_HourWrapsPastMidnight(t *testing.T) {
	enc := router.NewFeatureEncoder([]string{"a"})
	d, err := NewDiurnal(enc, nil, 0.000001)
	require.NoError(t, err)
	late := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)

	got, err := d.Predict(context.Background(), enc.Encode("a", snapshot(t, 0), late))
	require.NoError(t, err)
	assert.InDelta(t, router.RegionProfile("").LoadAt(0), got, 1e-3)
}

func TestNewDiurnal_Invalid(t *testing.T) {
	enc := router.NewFeatureEncoder([]string{"a"})

	_, err := NewDiurnal(enc, nil, 1.5)
	assert.True(t, router.IsConfigurationError(err))

	_, err = NewDiurnal(enc, map[string]router.DiurnalProfile{"nope": {}}, 0.5)
	assert.True(t, router.IsConfigurationError(err))
}

func TestLinear_DotProduct(t *testing.T) {
	enc := router.NewFeatureEncoder([]string{"a", "b"})
	coef := make([]float64, enc.Width())
	coef[router.FeatureCPULoad] = 0.9
	coef[router.FeatureDayOfWeek+2] = 5 // server_b
	l, err := NewLinear(LinearModel{Intercept: 2, Coefficients: coef}, enc)
	require.NoError(t, err)

	a, err := l.Predict(context.Background(), enc.Encode("a", snapshot(t, 40), monday15))
	require.NoError(t, err)
	b, err := l.Predict(context.Background(), enc.Encode("b", snapshot(t, 40), monday15))
	require.NoError(t, err)

	assert.InDelta(t, 2+0.9*40, a, 1e-9)
	assert.InDelta(t, 2+0.9*40+5, b, 1e-9)
}

func TestNewLinear_WidthMismatch_IsConfigurationError(t *testing.T) {
	enc := router.NewFeatureEncoder([]string{"a", "b"})
	_, err := NewLinear(LinearModel{Coefficients: []float64{1, 2, 3}}, enc)
	assert.True(t, router.IsConfigurationError(err))
}

func TestNewLinear_FeatureNameMismatch(t *testing.T) {
	enc := router.NewFeatureEncoder([]string{"a"})
	names := enc.FeatureNames()
	names[len(names)-1] = "server_other"
	_, err := NewLinear(LinearModel{Coefficients: make([]float64, enc.Width()), Features: names}, enc)
	assert.True(t, router.IsConfigurationError(err))
}

func TestLoadLinear_FromYAML(t *testing.T) {
	enc := router.NewFeatureEncoder([]string{"a"})
	path := filepath.Join(t.TempDir(), "model.yaml")
	content := "intercept: 1.5\ncoefficients: [0, 1, 0, 0, 0, 0, 0, 0]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err := LoadLinear(path, enc)
	require.NoError(t, err)
	got, err := l.Predict(context.Background(), enc.Encode("a", snapshot(t, 30), monday15))
	require.NoError(t, err)
	assert.InDelta(t, 31.5, got, 1e-9)
}

func TestLoadLinear_UnknownField_Rejected(t *testing.T) {
	enc := router.NewFeatureEncoder([]string{"a"})
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("intercept: 1\nslope: 2\n"), 0o644))
	_, err := LoadLinear(path, enc)
	assert.Error(t, err)
}

func TestNew_Registered(t *testing.T) {
	// GIVEN router/forecast is imported, router.NewEstimator can build estimators
	enc := router.NewFeatureEncoder([]string{"a"})

	est, err := router.NewEstimator(router.ForecastConfig{Estimator: "zero"}, enc)
	require.NoError(t, err)
	assert.IsType(t, Zero{}, est)

	est, err = router.NewEstimator(router.ForecastConfig{Estimator: "none"}, enc)
	require.NoError(t, err)
	assert.Nil(t, est)

	est, err = router.NewEstimator(router.ForecastConfig{Estimator: "linear"}, enc)
	assert.True(t, router.IsConfigurationError(err))
	assert.Nil(t, est, "a failed constructor must not leak a typed nil")
}

func TestPredict_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enc := router.NewFeatureEncoder([]string{"a"})
	d, err := NewDiurnal(enc, nil, 0.5)
	require.NoError(t, err)

	_, err = d.Predict(ctx, enc.Encode("a", snapshot(t, 10), monday15))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = Zero{}.Predict(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewONNX_MissingModel(t *testing.T) {
	_, err := NewONNX(ONNXConfig{ModelPath: filepath.Join(t.TempDir(), "absent.onnx"), Width: 8})
	assert.Error(t, err)
}
