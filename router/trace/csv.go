package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// csvColumns is the Decision Log CSV header.
var csvColumns = []string{
	"cycle", "timestamp", "chosen_backend", "chosen_region", "score", "margin",
	"ranking", "failures",
}

// CSVWriter appends decision records as CSV rows. The header is written
// before the first row. Goroutine-safe.
type CSVWriter struct {
	mu          sync.Mutex
	w           *csv.Writer
	wroteHeader bool
}

// NewCSVWriter wraps w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write appends one record and flushes.
func (c *CSVWriter) Write(rec DecisionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.wroteHeader {
		if err := c.w.Write(csvColumns); err != nil {
			return fmt.Errorf("writing decision log header: %w", err)
		}
		c.wroteHeader = true
	}
	row := []string{
		strconv.FormatUint(rec.Cycle, 10),
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.ChosenBackend,
		rec.ChosenRegion,
		strconv.FormatFloat(rec.Score, 'f', 6, 64),
		strconv.FormatFloat(rec.Margin, 'f', 6, 64),
		formatRanking(rec.Candidates),
		formatFailures(rec.Failures),
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("writing decision log row: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// formatRanking renders candidates as "name=score;name=score".
func formatRanking(cands []CandidateScore) string {
	parts := make([]string, len(cands))
	for i, c := range cands {
		parts[i] = fmt.Sprintf("%s=%.6f", c.Backend, c.Score)
	}
	return strings.Join(parts, ";")
}

// formatFailures renders failures as "name:kind;name:kind".
func formatFailures(fs []FailureRecord) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Backend + ":" + f.Kind
	}
	return strings.Join(parts, ";")
}
