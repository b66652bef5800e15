// Package metrics exposes decision-loop observability as Prometheus collectors.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes used as the "outcome" label.
const (
	OutcomeDecided = "decided"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder owns the collectors for one decision loop. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	Cycles        *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	Decisions     *prometheus.CounterVec
	Scores        *prometheus.GaugeVec
	CycleDuration prometheus.Histogram

	mu     sync.Mutex
	scored map[string]struct{} // backends with a live score series
}

// NewRecorder creates unregistered collectors.
func NewRecorder() *Recorder {
	return &Recorder{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "smartrouter_cycles_total", Help: "Decision cycles by outcome"},
			[]string{"outcome"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "smartrouter_backend_failures_total", Help: "Recoverable per-backend failures"},
			[]string{"backend", "kind"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "smartrouter_decisions_total", Help: "Cycles won, by backend"},
			[]string{"backend"},
		),
		Scores: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "smartrouter_backend_score", Help: "Score from the latest cycle (lower is better)"},
			[]string{"backend"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "smartrouter_cycle_duration_seconds",
				Help:    "Wall time of one decision cycle",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),
		scored: make(map[string]struct{}),
	}
}

// Collectors returns every collector for registration.
func (r *Recorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.Cycles, r.Failures, r.Decisions, r.Scores, r.CycleDuration}
}

// MustRegister registers all collectors with reg.
func (r *Recorder) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(r.Collectors()...)
}

// ObserveCycle records a cycle outcome. Skipped cycles carry no duration.
func (r *Recorder) ObserveCycle(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.Cycles.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		r.CycleDuration.Observe(d.Seconds())
	}
	if outcome == OutcomeFailed {
		r.setScores(nil)
	}
}

// ObserveFailure counts one recoverable backend failure.
func (r *Recorder) ObserveFailure(backend, kind string) {
	if r == nil {
		return
	}
	r.Failures.WithLabelValues(backend, kind).Inc()
}

// ObserveDecision counts the winner and publishes every ranked score.
// Backends missing from scores lose their score series.
func (r *Recorder) ObserveDecision(winner string, scores map[string]float64) {
	if r == nil {
		return
	}
	r.Decisions.WithLabelValues(winner).Inc()
	r.setScores(scores)
}

func (r *Recorder) setScores(scores map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for backend := range r.scored {
		if _, ok := scores[backend]; !ok {
			r.Scores.DeleteLabelValues(backend)
			delete(r.scored, backend)
		}
	}
	for backend, s := range scores {
		r.Scores.WithLabelValues(backend).Set(s)
		r.scored[backend] = struct{}{}
	}
}

// ForgetBackend drops per-backend series, e.g. after deregistration.
func (r *Recorder) ForgetBackend(backend string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.Scores.DeleteLabelValues(backend)
	delete(r.scored, backend)
	r.mu.Unlock()
	r.Decisions.DeleteLabelValues(backend)
	r.Failures.DeletePartialMatch(prometheus.Labels{"backend": backend})
}
