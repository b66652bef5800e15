package telemetry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/inference-sim/smartrouter/router"
	"github.com/sirupsen/logrus"
)

// ErrNoReplayData is returned for a backend with no rows in the replay file.
var ErrNoReplayData = errors.New("no replay data for backend")

// replayColumns maps CSV headers to metrics. The layout is the one written by
// the metrics collection job: timestamp, server_name, region, latency_ms,
// cpu_load_percent, packet_loss_percent, jitter_ms, active_requests.
var replayColumns = map[string]router.Metric{
	"latency_ms":          router.MetricLatency,
	"cpu_load_percent":    router.MetricCPULoad,
	"packet_loss_percent": router.MetricPacketLoss,
	"jitter_ms":           router.MetricJitter,
	"active_requests":     router.MetricActiveRequests,
}

// timestamp layouts accepted in the replay file, tried in order.
var replayTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

type replayRow struct {
	at      time.Time
	reading router.Reading
}

// Replay serves recorded telemetry. For a cycle at time t it returns the
// backend's latest row at or before t. Times outside the recording wrap
// around its span, so a one-week file can drive a live loop indefinitely.
// Empty cells are left out of the reading and the core rejects the snapshot.
type Replay struct {
	rows  map[string][]replayRow // server_name → rows sorted by time
	first time.Time
	last  time.Time
}

// LoadReplay reads a replay CSV from path.
func LoadReplay(path string) (*Replay, error) {
	if path == "" {
		return nil, &router.ConfigurationError{Field: "telemetry.replay_path", Reason: "required for replay source"}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseReplay(f)
}

// ParseReplay reads replay CSV rows from r.
func ParseReplay(r io.Reader) (*Replay, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading replay header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"timestamp", "server_name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("replay header missing column %q", required)
		}
	}

	rp := &Replay{rows: make(map[string][]replayRow)}
	line, skipped := 1, 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading replay line %d: %w", line, err)
		}
		at, name, reading, ok := parseReplayRecord(rec, col)
		if !ok {
			skipped++
			continue
		}
		rp.rows[name] = append(rp.rows[name], replayRow{at: at, reading: reading})
		if rp.first.IsZero() || at.Before(rp.first) {
			rp.first = at
		}
		if at.After(rp.last) {
			rp.last = at
		}
	}
	if skipped > 0 {
		logrus.Warnf("ParseReplay: %d rows were skipped (bad timestamp or server name)", skipped)
	}
	if len(rp.rows) == 0 {
		return nil, fmt.Errorf("replay file has no usable rows")
	}
	for name := range rp.rows {
		rows := rp.rows[name]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })
	}
	return rp, nil
}

func parseReplayRecord(rec []string, col map[string]int) (time.Time, string, router.Reading, bool) {
	cell := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	name := cell("server_name")
	at, err := parseReplayTime(cell("timestamp"))
	if name == "" || err != nil {
		return time.Time{}, "", nil, false
	}
	reading := make(router.Reading, len(replayColumns))
	for header, metric := range replayColumns {
		raw := cell(header)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		reading[metric] = v
	}
	return at, name, reading, true
}

func parseReplayTime(s string) (time.Time, error) {
	for _, layout := range replayTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Span returns the first and last timestamps in the recording.
func (rp *Replay) Span() (time.Time, time.Time) { return rp.first, rp.last }

// Collect implements router.TelemetrySource.
func (rp *Replay) Collect(ctx context.Context, b *router.Backend, at time.Time) (router.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := rp.rows[b.Name]
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoReplayData, b.Name)
	}
	t := rp.wrap(at)
	idx := sort.Search(len(rows), func(i int) bool { return rows[i].at.After(t) }) - 1
	if idx < 0 {
		return nil, fmt.Errorf("%w %q at %s", ErrNoReplayData, b.Name, t.Format(time.RFC3339))
	}
	out := make(router.Reading, len(rows[idx].reading)+1)
	for m, v := range rows[idx].reading {
		out[m] = v
	}
	return out, nil
}

// wrap maps at into [first, last].
func (rp *Replay) wrap(at time.Time) time.Time {
	if !at.Before(rp.first) && !at.After(rp.last) {
		return at
	}
	span := rp.last.Sub(rp.first)
	if span <= 0 {
		return rp.first
	}
	offset := at.Sub(rp.first) % span
	if offset < 0 {
		offset += span
	}
	return rp.first.Add(offset)
}
