package router

import (
	"encoding/json"
	"time"
)

// ScoredBackend is one backend's snapshot and score for one cycle.
type ScoredBackend struct {
	Backend    *Backend
	Snapshot   MetricSnapshot
	Score      float64
	Forecasted bool // snapshot carries a forecast from ENRICH
}

// Decision is the single externally visible output of a cycle.
type Decision struct {
	Cycle     uint64
	Timestamp time.Time
	Winner    ScoredBackend
	Ranked    []ScoredBackend  // ascending score; Ranked[0] is the winner
	Failures  []BackendFailure // recoverable failures observed this cycle
}

// FailureCount returns how many failures of kind k the cycle recorded.
func (d *Decision) FailureCount(k FailureKind) int {
	n := 0
	for _, f := range d.Failures {
		if f.Kind == k {
			n++
		}
	}
	return n
}

type scoredJSON struct {
	Name     string          `json:"name"`
	Region   string          `json:"region"`
	Score    float64         `json:"score"`
	Snapshot *MetricSnapshot `json:"snapshot,omitempty"`
}

type failureJSON struct {
	Backend string      `json:"backend"`
	Kind    FailureKind `json:"kind"`
	Error   string      `json:"error"`
}

type decisionJSON struct {
	Cycle     uint64        `json:"cycle"`
	Timestamp time.Time     `json:"timestamp"`
	Chosen    scoredJSON    `json:"chosen"`
	Ranked    []scoredJSON  `json:"ranked"`
	Failures  []failureJSON `json:"failures"`
}

// MarshalJSON implements json.Marshaler with a flat, reporting-friendly shape.
func (d Decision) MarshalJSON() ([]byte, error) {
	out := decisionJSON{
		Cycle:     d.Cycle,
		Timestamp: d.Timestamp,
		Chosen: scoredJSON{
			Name:   d.Winner.Backend.Name,
			Region: d.Winner.Backend.Region,
			Score:  d.Winner.Score,
		},
		Ranked:   make([]scoredJSON, len(d.Ranked)),
		Failures: make([]failureJSON, len(d.Failures)),
	}
	for i, sb := range d.Ranked {
		snap := sb.Snapshot
		out.Ranked[i] = scoredJSON{
			Name:     sb.Backend.Name,
			Region:   sb.Backend.Region,
			Score:    sb.Score,
			Snapshot: &snap,
		}
	}
	for i, f := range d.Failures {
		out.Failures[i] = failureJSON{Backend: f.Backend, Kind: f.Kind, Error: f.Err.Error()}
	}
	return json.Marshal(out)
}
