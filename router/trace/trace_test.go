package trace

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(cycle uint64, chosen string, score float64) DecisionRecord {
	return DecisionRecord{
		Cycle:         cycle,
		Timestamp:     time.Date(2025, 8, 1, 0, int(cycle), 0, 0, time.UTC),
		ChosenBackend: chosen,
		ChosenRegion:  "US",
		Score:         score,
		Candidates: []CandidateScore{
			{Backend: chosen, Score: score},
			{Backend: "other", Score: score + 0.1},
		},
	}
}

func TestDecisionLog_Record_AppendsRecord(t *testing.T) {
	// GIVEN a log with default settings
	l := NewDecisionLog(Config{}, nil)

	// WHEN a decision is recorded
	require.NoError(t, l.Record(record(1, "Server1", 0.2)))

	// THEN it is retained with its candidates
	recent := l.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, "Server1", recent[0].ChosenBackend)
	assert.Len(t, recent[0].Candidates, 2)
	assert.Equal(t, uint64(1), l.Total())
}

func TestDecisionLog_Recent_NewestFirstAndBounded(t *testing.T) {
	// GIVEN a log holding 3 records
	l := NewDecisionLog(Config{Capacity: 3}, nil)

	// WHEN 5 records are added
	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Record(record(uint64(i), fmt.Sprintf("s%d", i), 0.1)))
	}

	// THEN only the newest 3 remain, newest first
	recent := l.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, []uint64{5, 4, 3}, []uint64{recent[0].Cycle, recent[1].Cycle, recent[2].Cycle})
	assert.Len(t, l.Recent(2), 2)
	assert.Equal(t, uint64(5), l.Total())
}

func TestDecisionLog_LevelNone_RecordsNothing(t *testing.T) {
	l := NewDecisionLog(Config{Level: LevelNone}, nil)
	require.NoError(t, l.Record(record(1, "Server1", 0.2)))
	assert.Empty(t, l.Recent(0))
	assert.False(t, l.Enabled())
}

func TestDecisionLog_LevelDecisions_DropsCandidates(t *testing.T) {
	l := NewDecisionLog(Config{Level: LevelDecisions}, nil)
	require.NoError(t, l.Record(record(1, "Server1", 0.2)))
	assert.Nil(t, l.Recent(1)[0].Candidates)
}

func TestDecisionLog_CandidatesK_Trims(t *testing.T) {
	l := NewDecisionLog(Config{CandidatesK: 1}, nil)
	require.NoError(t, l.Record(record(1, "Server1", 0.2)))
	assert.Len(t, l.Recent(1)[0].Candidates, 1)
}

func TestDecisionLog_Summary_IncludesEvicted(t *testing.T) {
	// GIVEN a log that keeps one record
	l := NewDecisionLog(Config{Capacity: 1}, nil)

	// WHEN three decisions are recorded
	require.NoError(t, l.Record(record(1, "a", 0.1)))
	require.NoError(t, l.Record(record(2, "a", 0.3)))
	require.NoError(t, l.Record(record(3, "b", 0.2)))

	// THEN the summary covers all three
	s := l.Summary()
	assert.Equal(t, 3, s.TotalDecisions)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, s.TargetDistribution)
	assert.InDelta(t, 0.2, s.MeanScore, 1e-12)
}

func TestCSVWriter_WritesHeaderOnce(t *testing.T) {
	// GIVEN a log with a CSV sink
	var buf bytes.Buffer
	l := NewDecisionLog(Config{}, NewCSVWriter(&buf))

	// WHEN two decisions are recorded, one with a failure
	require.NoError(t, l.Record(record(1, "Server1", 0.25)))
	rec := record(2, "Server2", 0.5)
	rec.Failures = []FailureRecord{{Backend: "Server3", Kind: "collection", Error: "timeout"}}
	require.NoError(t, l.Record(rec))

	// THEN the CSV has a header plus two rows
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvColumns, rows[0])
	assert.Equal(t, "Server1", rows[1][2])
	assert.Equal(t, "0.250000", rows[1][4])
	assert.Equal(t, "Server1=0.250000;other=0.350000", rows[1][6])
	assert.Equal(t, "Server3:collection", rows[2][7])
}

func TestIsValidLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"decisions", true},
		{"candidates", true},
		{"", true}, // empty defaults to candidates
		{"detailed", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidLevel(tt.level))
		})
	}
}
