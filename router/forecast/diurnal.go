package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/inference-sim/smartrouter/router"
)

// DefaultAlpha weighs current CPU against the profile's next-hour load.
const DefaultAlpha = 0.5

// Diurnal predicts next-hour CPU from a per-backend daily profile:
//
//	pred = alpha*cpu_now + (1-alpha)*profile.LoadAt(hour+1)
//
// The backend is identified by the encoded one-hot column. A vector with no
// hot column (a backend registered after startup) uses the default profile.
type Diurnal struct {
	profiles []router.DiurnalProfile // one-hot order
	fallback router.DiurnalProfile
	alpha    float64
	width    int
}

// NewDiurnal builds a diurnal estimator. profiles maps backend names to
// profiles; names without an entry use router.RegionProfile(""). alpha of 0
// means DefaultAlpha; otherwise it must be in (0,1].
func NewDiurnal(enc router.FeatureEncoder, profiles map[string]router.DiurnalProfile, alpha float64) (*Diurnal, error) {
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	if alpha < 0 || alpha > 1 || math.IsNaN(alpha) {
		return nil, &router.ConfigurationError{Field: "forecast.alpha", Reason: fmt.Sprintf("must be in (0,1], got %v", alpha)}
	}
	fallback := router.RegionProfile("")
	names := enc.BackendNames()
	d := &Diurnal{
		profiles: make([]router.DiurnalProfile, len(names)),
		fallback: fallback,
		alpha:    alpha,
		width:    enc.Width(),
	}
	for name := range profiles {
		if !contains(names, name) {
			return nil, &router.ConfigurationError{Field: "forecast.profiles", Reason: fmt.Sprintf("unknown backend %q", name)}
		}
	}
	for i, name := range names {
		if p, ok := profiles[name]; ok {
			d.profiles[i] = p
		} else {
			d.profiles[i] = fallback
		}
	}
	return d, nil
}

// Predict implements router.Estimator.
func (d *Diurnal) Predict(ctx context.Context, features []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(features) != d.width {
		return 0, fmt.Errorf("diurnal: expected %d features, got %d", d.width, len(features))
	}
	profile := d.fallback
	if i := router.OneHotIndex(features); i >= 0 && i < len(d.profiles) {
		profile = d.profiles[i]
	}
	nextHour := math.Mod(features[router.FeatureHour]+1, 24)
	cpu := features[router.FeatureCPULoad]
	return d.alpha*cpu + (1-d.alpha)*profile.LoadAt(nextHour), nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
