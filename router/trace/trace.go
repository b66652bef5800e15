package trace

import (
	"sync"
)

// Level controls how much of each decision the log keeps.
type Level string

const (
	// LevelNone disables recording (zero overhead).
	LevelNone Level = "none"
	// LevelDecisions keeps the winner, score, margin and failures.
	LevelDecisions Level = "decisions"
	// LevelCandidates also keeps the ranked candidates.
	LevelCandidates Level = "candidates"
)

// validLevels maps accepted level strings.
var validLevels = map[Level]bool{
	LevelNone:       true,
	LevelDecisions:  true,
	LevelCandidates: true,
	"":              true, // empty defaults to candidates
}

// IsValidLevel returns true if the given level string is a recognized level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// DefaultCapacity is the number of recent decisions a dashboard shows.
const DefaultCapacity = 10

// Config controls Decision Log behavior.
type Config struct {
	Level    Level
	Capacity int // records retained in memory; <= 0 means DefaultCapacity
	// CandidatesK caps candidates kept per record; <= 0 keeps all.
	CandidatesK int
}

// DecisionLog is a bounded, goroutine-safe ring of recent decisions with an
// optional CSV sink that receives every record.
type DecisionLog struct {
	config Config
	sink   *CSVWriter

	mu      sync.Mutex
	records []DecisionRecord // ring buffer
	next    int
	total   uint64
	agg     aggregate
}

// NewDecisionLog creates a DecisionLog ready for recording. sink may be nil.
func NewDecisionLog(config Config, sink *CSVWriter) *DecisionLog {
	if config.Level == "" {
		config.Level = LevelCandidates
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	return &DecisionLog{
		config:  config,
		sink:    sink,
		records: make([]DecisionRecord, 0, config.Capacity),
	}
}

// Config returns the log's configuration.
func (l *DecisionLog) Config() Config { return l.config }

// Enabled reports whether Record keeps anything.
func (l *DecisionLog) Enabled() bool {
	return l != nil && l.config.Level != LevelNone
}

// Record appends a decision, evicting the oldest when full, and forwards it
// to the CSV sink. Candidates are trimmed per the configured level and k.
func (l *DecisionLog) Record(rec DecisionRecord) error {
	if !l.Enabled() {
		return nil
	}
	switch {
	case l.config.Level == LevelDecisions:
		rec.Candidates = nil
	case l.config.CandidatesK > 0 && len(rec.Candidates) > l.config.CandidatesK:
		rec.Candidates = rec.Candidates[:l.config.CandidatesK]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) < l.config.Capacity {
		l.records = append(l.records, rec)
	} else {
		l.records[l.next] = rec
	}
	l.next = (l.next + 1) % l.config.Capacity
	l.total++
	l.agg.add(rec)

	if l.sink != nil {
		return l.sink.Write(rec)
	}
	return nil
}

// Recent returns up to n records, newest first. n <= 0 returns all retained.
func (l *DecisionLog) Recent(n int) []DecisionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	size := len(l.records)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]DecisionRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + size) % size
		out = append(out, l.records[idx])
	}
	return out
}

// Total returns how many records were ever recorded, including evicted ones.
func (l *DecisionLog) Total() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Summary aggregates every record ever recorded, including evicted ones.
func (l *DecisionLog) Summary() *Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agg.summary()
}
