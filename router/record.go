package router

import "github.com/inference-sim/smartrouter/router/trace"

// NewDecisionRecord converts a Decision into its Decision Log form.
// Margin is how far the runner-up trailed the winner; a large margin means
// the choice was clear, a margin near 0 means a coin flip settled by
// registry order. 0 with a single candidate.
func NewDecisionRecord(d *Decision) trace.DecisionRecord {
	rec := trace.DecisionRecord{
		Cycle:         d.Cycle,
		Timestamp:     d.Timestamp,
		ChosenBackend: d.Winner.Backend.Name,
		ChosenRegion:  d.Winner.Backend.Region,
		Score:         d.Winner.Score,
		Candidates:    make([]trace.CandidateScore, len(d.Ranked)),
	}
	if len(d.Ranked) > 1 {
		rec.Margin = d.Ranked[1].Score - d.Winner.Score
	}
	for i, sb := range d.Ranked {
		pred, ok := sb.Snapshot.PredictedCPULoad()
		rec.Candidates[i] = trace.CandidateScore{
			Backend:          sb.Backend.Name,
			Region:           sb.Backend.Region,
			Score:            sb.Score,
			Latency:          sb.Snapshot.Latency(),
			CPULoad:          sb.Snapshot.CPULoad(),
			PacketLoss:       sb.Snapshot.PacketLoss(),
			Jitter:           sb.Snapshot.Jitter(),
			ActiveRequests:   sb.Snapshot.ActiveRequests(),
			PredictedCPULoad: pred,
			Forecasted:       ok,
		}
	}
	for _, f := range d.Failures {
		rec.Failures = append(rec.Failures, trace.FailureRecord{
			Backend: f.Backend,
			Kind:    string(f.Kind),
			Error:   f.Err.Error(),
		})
	}
	return rec
}
