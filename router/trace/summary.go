package trace

// Summary aggregates statistics over a set of decision records.
type Summary struct {
	TotalDecisions     int            `json:"total_decisions"`
	UniqueTargets      int            `json:"unique_targets"`
	TargetDistribution map[string]int `json:"target_distribution"` // backend → decisions won
	MeanScore          float64        `json:"mean_score"`
	MeanMargin         float64        `json:"mean_margin"`
	MaxMargin          float64        `json:"max_margin"`
	FailuresByKind     map[string]int `json:"failures_by_kind"`
	FailuresByBackend  map[string]int `json:"failures_by_backend"`
}

// Summarize computes aggregate statistics from decision records.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(records []DecisionRecord) *Summary {
	var agg aggregate
	for _, r := range records {
		agg.add(r)
	}
	return agg.summary()
}

// aggregate accumulates running totals so the log can summarize records it
// has already evicted.
type aggregate struct {
	count       int
	totalScore  float64
	totalMargin float64
	maxMargin   float64
	targets     map[string]int
	byKind      map[string]int
	byBackend   map[string]int
}

func (a *aggregate) add(r DecisionRecord) {
	if a.targets == nil {
		a.targets = make(map[string]int)
		a.byKind = make(map[string]int)
		a.byBackend = make(map[string]int)
	}
	a.count++
	a.targets[r.ChosenBackend]++
	a.totalScore += r.Score
	a.totalMargin += r.Margin
	if r.Margin > a.maxMargin {
		a.maxMargin = r.Margin
	}
	for _, f := range r.Failures {
		a.byKind[f.Kind]++
		a.byBackend[f.Backend]++
	}
}

func (a *aggregate) summary() *Summary {
	s := &Summary{
		TargetDistribution: copyCounts(a.targets),
		FailuresByKind:     copyCounts(a.byKind),
		FailuresByBackend:  copyCounts(a.byBackend),
	}
	if a.count == 0 {
		return s
	}
	s.TotalDecisions = a.count
	s.UniqueTargets = len(a.targets)
	s.MeanScore = a.totalScore / float64(a.count)
	s.MeanMargin = a.totalMargin / float64(a.count)
	s.MaxMargin = a.maxMargin
	return s
}

func copyCounts(m map[string]int) map[string]int {
	cp := make(map[string]int, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
