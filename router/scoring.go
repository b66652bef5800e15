package router

import (
	"fmt"
	"math"
	"sort"
)

// Score computes the weighted, normalized cost of one snapshot.
//
// For each weighted metric, in canonical order:
//
//	normalized = min(value / bound, 1)
//	score     += normalized × weight
//
// Values above their bound saturate at the metric's full weight. Metrics
// absent from the weight config are ignored. A missing forecast contributes
// 0; any other missing weighted metric is ErrIncompleteSnapshot.
//
// With a validated ScoringConfig the result lies in [0,1]. Score is pure: no
// clock, no randomness, no I/O, and identical inputs give bit-identical output.
func Score(s MetricSnapshot, cfg ScoringConfig) (float64, error) {
	score := 0.0
	for _, m := range AllMetrics {
		w, ok := cfg.weights[m]
		if !ok || w == 0 {
			continue
		}
		v, present := s.Value(m)
		if !present {
			if m == MetricPredictedCPULoad {
				continue
			}
			return 0, fmt.Errorf("%w: weighted metric %s missing", ErrIncompleteSnapshot, m)
		}
		score += math.Min(v/cfg.bounds[m], 1.0) * w
	}
	return score, nil
}

// SelectBest returns the lowest-scoring entry. Ties are broken by first
// occurrence in the slice (strict <), which callers keep in registry order.
// Returns false for an empty slice.
func SelectBest(scored []ScoredBackend) (ScoredBackend, bool) {
	if len(scored) == 0 {
		return ScoredBackend{}, false
	}
	best := 0
	for i := 1; i < len(scored); i++ {
		if scored[i].Score < scored[best].Score {
			best = i
		}
	}
	return scored[best], true
}

// Rank returns a copy of scored sorted by ascending score. The sort is
// stable, so equal scores keep registry order and Rank(x)[0] == SelectBest(x).
func Rank(scored []ScoredBackend) []ScoredBackend {
	ranked := make([]ScoredBackend, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	return ranked
}
