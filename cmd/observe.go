package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

var (
	observeURL         string // base URL of a running `serve`
	observeRequests    int    // total /route calls
	observeConcurrency int    // concurrent callers
)

// RouteClient asks a running router which backend to use.
type RouteClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRouteClient creates a client for the router at baseURL.
func NewRouteClient(baseURL string) *RouteClient {
	return &RouteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RouteRecord captures one /route call.
type RouteRecord struct {
	RequestID    int
	Status       string // "ok", "unavailable", "busy", "error"
	Backend      string
	Score        float64
	LatencyUs    int64
	ErrorMessage string
}

// Route calls /route once and records the outcome. Transport and HTTP errors
// are reported in the record, not returned.
func (c *RouteClient) Route(ctx context.Context, id int) *RouteRecord {
	record := &RouteRecord{RequestID: id, Status: "ok"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/route", nil)
	if err != nil {
		record.Status = "error"
		record.ErrorMessage = fmt.Sprintf("request creation error: %v", err)
		return record
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		record.Status = "error"
		record.ErrorMessage = fmt.Sprintf("HTTP error: %v", err)
		return record
	}
	defer func() { _ = resp.Body.Close() }()
	bodyData, err := io.ReadAll(resp.Body)
	record.LatencyUs = time.Since(start).Microseconds()
	if err != nil {
		record.Status = "error"
		record.ErrorMessage = fmt.Sprintf("read error: %v", err)
		return record
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		record.Status = "unavailable"
		record.ErrorMessage = strings.TrimSpace(string(bodyData))
		return record
	case http.StatusTooManyRequests:
		record.Status = "busy"
		record.ErrorMessage = strings.TrimSpace(string(bodyData))
		return record
	default:
		record.Status = "error"
		record.ErrorMessage = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(bodyData))
		return record
	}

	var result struct {
		Chosen struct {
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"chosen"`
	}
	if err := json.Unmarshal(bodyData, &result); err != nil {
		record.Status = "error"
		record.ErrorMessage = fmt.Sprintf("JSON parse error: %v", err)
		return record
	}
	record.Backend = result.Chosen.Name
	record.Score = result.Chosen.Score
	return record
}

// RouteRecorder collects RouteRecords (goroutine-safe).
type RouteRecorder struct {
	mu      sync.Mutex
	records []RouteRecord
}

// Record stores one result.
func (r *RouteRecorder) Record(rec *RouteRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
}

// Records returns all records ordered by request ID.
func (r *RouteRecorder) Records() []RouteRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]RouteRecord, len(r.records))
	copy(result, r.records)
	sort.Slice(result, func(i, j int) bool { return result[i].RequestID < result[j].RequestID })
	return result
}

// ObserveSummary aggregates an observe run.
type ObserveSummary struct {
	Requests      int            `json:"requests"`
	ByBackend     map[string]int `json:"by_backend"`
	ByStatus      map[string]int `json:"by_status"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	MeanScore     float64        `json:"mean_score"`
}

// Summary aggregates the recorded calls.
func (r *RouteRecorder) Summary() ObserveSummary {
	recs := r.Records()
	s := ObserveSummary{Requests: len(recs), ByBackend: map[string]int{}, ByStatus: map[string]int{}}
	var latencies, scores []float64
	for _, rec := range recs {
		s.ByStatus[rec.Status]++
		if rec.LatencyUs > 0 {
			latencies = append(latencies, float64(rec.LatencyUs)/1000)
		}
		if rec.Status == "ok" {
			s.ByBackend[rec.Backend]++
			scores = append(scores, rec.Score)
		}
	}
	if len(latencies) > 0 {
		s.MeanLatencyMs = stat.Mean(latencies, nil)
	}
	if len(scores) > 0 {
		s.MeanScore = stat.Mean(scores, nil)
	}
	return s
}

// observe sends n /route calls with the given concurrency.
func observe(ctx context.Context, client *RouteClient, n, concurrency int) *RouteRecorder {
	rec := &RouteRecorder{}
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			rec.Record(client.Route(gctx, id))
			return nil
		})
	}
	_ = g.Wait()
	return rec
}

// observeCmd drives a running `serve` instance and reports where traffic went
var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Send /route calls to a running router and summarize the decisions",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if observeRequests <= 0 {
			logrus.Fatalf("--requests must be positive, got %d", observeRequests)
		}
		rec := observe(cmd.Context(), NewRouteClient(observeURL), observeRequests, observeConcurrency)
		for _, r := range rec.Records() {
			if r.Status != "ok" {
				logrus.Debugf("request %d: %s %s", r.RequestID, r.Status, r.ErrorMessage)
			}
		}
		data, err := json.MarshalIndent(rec.Summary(), "", "  ")
		if err != nil {
			logrus.Fatalf("encoding summary: %v", err)
		}
		_, _ = fmt.Fprintf(os.Stdout, "=== Observe Summary ===\n%s\n", data)
	},
}

func init() {
	observeCmd.Flags().StringVar(&observeURL, "server", "http://localhost:8080", "Base URL of a running smartrouter serve")
	observeCmd.Flags().IntVar(&observeRequests, "requests", 20, "Number of /route calls")
	observeCmd.Flags().IntVar(&observeConcurrency, "concurrency", 1, "Concurrent callers")
	observeCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.AddCommand(observeCmd)
}
