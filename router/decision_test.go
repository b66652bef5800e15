package router

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDecision(t *testing.T) *Decision {
	t.Helper()
	a := ScoredBackend{Backend: NewBackend("a", "US", ""), Snapshot: mustSnapshot(t, reading(20, 10, 0, 0, 1)).WithPrediction(30), Score: 0.2, Forecasted: true}
	b := ScoredBackend{Backend: NewBackend("b", "Europe", ""), Snapshot: mustSnapshot(t, reading(80, 10, 0, 0, 0)), Score: 0.5}
	return &Decision{
		Cycle:     4,
		Timestamp: testTime,
		Winner:    a,
		Ranked:    []ScoredBackend{a, b},
		Failures:  []BackendFailure{{Backend: "c", Kind: FailureEstimation, Err: errors.New("boom")}},
	}
}

func TestNewDecisionRecord(t *testing.T) {
	rec := NewDecisionRecord(sampleDecision(t))

	assert.Equal(t, uint64(4), rec.Cycle)
	assert.Equal(t, "a", rec.ChosenBackend)
	assert.Equal(t, "US", rec.ChosenRegion)
	assert.InDelta(t, 0.3, rec.Margin, 1e-12)
	require.Len(t, rec.Candidates, 2)
	assert.Equal(t, 30.0, rec.Candidates[0].PredictedCPULoad)
	assert.True(t, rec.Candidates[0].Forecasted)
	assert.Equal(t, 1, rec.Candidates[0].ActiveRequests)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, "estimation", rec.Failures[0].Kind)
	assert.Equal(t, "boom", rec.Failures[0].Error)
}

func TestNewDecisionRecord_SingleCandidate_ZeroMargin(t *testing.T) {
	d := sampleDecision(t)
	d.Ranked = d.Ranked[:1]
	assert.Equal(t, 0.0, NewDecisionRecord(d).Margin)
}

func TestDecision_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleDecision(t))
	require.NoError(t, err)

	var out struct {
		Cycle  uint64 `json:"cycle"`
		Chosen struct {
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"chosen"`
		Ranked []struct {
			Name     string         `json:"name"`
			Snapshot map[string]any `json:"snapshot"`
		} `json:"ranked"`
		Failures []struct {
			Kind  string `json:"kind"`
			Error string `json:"error"`
		} `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "a", out.Chosen.Name)
	assert.Equal(t, 0.2, out.Chosen.Score)
	require.Len(t, out.Ranked, 2)
	assert.Equal(t, 30.0, out.Ranked[0].Snapshot["predicted_cpu_load"])
	assert.Equal(t, "boom", out.Failures[0].Error)
}

func TestCycleError_UnwrapsToNoBackends(t *testing.T) {
	err := error(&CycleError{Cycle: 3, Backends: 2, Failures: make([]BackendFailure, 2)})
	assert.ErrorIs(t, err, ErrNoBackendsAvailable)
	assert.Contains(t, err.Error(), "2 of 2")
}

func TestFailureKind_Excludes(t *testing.T) {
	assert.True(t, FailureCollection.Excludes())
	assert.True(t, FailureIncomplete.Excludes())
	assert.False(t, FailureEstimation.Excludes())
}
