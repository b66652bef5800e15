// register.go wires router/telemetry constructors into the router package's
// registration variable (NewTelemetrySourceFunc). This init() runs when any
// package imports router/telemetry, breaking the import cycle between router/
// (interface owner) and router/telemetry/ (implementations).
package telemetry

import (
	"fmt"

	"github.com/inference-sim/smartrouter/router"
)

func init() {
	router.NewTelemetrySourceFunc = New
}

// New builds the Telemetry Source named by cfg.Source.
func New(cfg router.TelemetryConfig) (router.TelemetrySource, error) {
	switch cfg.Source {
	case "", "simulated":
		s, err := NewSimulated(cfg.Seed, cfg.FailureRate)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "replay":
		r, err := LoadReplay(cfg.ReplayPath)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "probe":
		return NewProbe(cfg.ProbePath, cfg.Probes), nil
	default:
		return nil, fmt.Errorf("unknown telemetry source %q", cfg.Source)
	}
}
