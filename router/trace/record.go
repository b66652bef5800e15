// Package trace provides the Decision Log: recording, summarizing and
// exporting the decisions the router's loop emits.
// This package has no dependencies on router/: it stores pure data types.
package trace

import "time"

// CandidateScore captures one ranked backend with its score and readings.
type CandidateScore struct {
	Backend          string  `json:"backend"`
	Region           string  `json:"region"`
	Score            float64 `json:"score"`
	Latency          float64 `json:"latency"`
	CPULoad          float64 `json:"cpu_load"`
	PacketLoss       float64 `json:"packet_loss"`
	Jitter           float64 `json:"jitter"`
	ActiveRequests   int     `json:"active_requests"`
	PredictedCPULoad float64 `json:"predicted_cpu_load"`
	Forecasted       bool    `json:"forecasted"`
}

// FailureRecord captures one recoverable per-backend failure.
type FailureRecord struct {
	Backend string `json:"backend"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

// DecisionRecord captures a single decision with its ranked candidates.
type DecisionRecord struct {
	Cycle         uint64           `json:"cycle"`
	Timestamp     time.Time        `json:"timestamp"`
	ChosenBackend string           `json:"chosen_backend"`
	ChosenRegion  string           `json:"chosen_region"`
	Score         float64          `json:"score"`
	Margin        float64          `json:"margin"`               // runner-up score - chosen score; 0 with one candidate
	Candidates    []CandidateScore `json:"candidates,omitempty"` // ascending score, top-k (nil at LevelDecisions)
	Failures      []FailureRecord  `json:"failures,omitempty"`
}
