package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_EmptyRecords_ZeroValues(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.TotalDecisions)
	assert.Equal(t, 0, s.UniqueTargets)
	assert.NotNil(t, s.TargetDistribution)
	assert.NotNil(t, s.FailuresByKind)
}

func TestSummarize_AggregatesTargetsMarginsAndFailures(t *testing.T) {
	// GIVEN three decisions across two backends with failures
	records := []DecisionRecord{
		{ChosenBackend: "Server1", Score: 0.2, Margin: 0.1},
		{ChosenBackend: "Server1", Score: 0.4, Margin: 0.3,
			Failures: []FailureRecord{{Backend: "Server3", Kind: "collection"}}},
		{ChosenBackend: "Server2", Score: 0.3, Margin: 0.2,
			Failures: []FailureRecord{{Backend: "Server3", Kind: "estimation"}, {Backend: "Server4", Kind: "collection"}}},
	}

	// WHEN summarized
	s := Summarize(records)

	// THEN aggregates reflect every record
	assert.Equal(t, 3, s.TotalDecisions)
	assert.Equal(t, 2, s.UniqueTargets)
	assert.Equal(t, 2, s.TargetDistribution["Server1"])
	assert.InDelta(t, 0.3, s.MeanScore, 1e-12)
	assert.InDelta(t, 0.2, s.MeanMargin, 1e-12)
	assert.Equal(t, 0.3, s.MaxMargin)
	assert.Equal(t, map[string]int{"collection": 2, "estimation": 1}, s.FailuresByKind)
	assert.Equal(t, map[string]int{"Server3": 2, "Server4": 1}, s.FailuresByBackend)
}
