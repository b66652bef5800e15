package router

import "math"

// DiurnalProfile describes a region's daily CPU pattern: a base load plus a
// sinusoidal swing of up to 50 points with a 24-hour period.
type DiurnalProfile struct {
	Base     float64 `yaml:"base"`
	PeakHour int     `yaml:"peak_hour"`
}

// LoadAt returns the profile's CPU load (percent, clamped to [0,100]) at the
// given hour of day. Fractional hours are allowed.
func (p DiurnalProfile) LoadAt(hour float64) float64 {
	cyclical := (math.Sin((hour-float64(p.PeakHour))*(math.Pi/12)) + 1) / 2 * 50
	return math.Max(0, math.Min(100, p.Base+cyclical))
}

// defaultProfile applies to regions without an entry in regionProfiles.
var defaultProfile = DiurnalProfile{Base: 40, PeakHour: 15}

var regionProfiles = map[string]DiurnalProfile{
	"US":     {Base: 40, PeakHour: 15},
	"Europe": {Base: 30, PeakHour: 14},
	"Asia":   {Base: 50, PeakHour: 11},
	"India":  {Base: 40, PeakHour: 17},
}

// RegionProfile returns the built-in profile for a region.
func RegionProfile(region string) DiurnalProfile {
	if p, ok := regionProfiles[region]; ok {
		return p
	}
	return defaultProfile
}
