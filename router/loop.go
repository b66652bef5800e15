package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/smartrouter/router/metrics"
	"github.com/inference-sim/smartrouter/router/trace"
)

const (
	DefaultCollectTimeout  = time.Second
	DefaultForecastTimeout = 500 * time.Millisecond
)

// LoopConfig wires a Decision Loop to its collaborators.
type LoopConfig struct {
	Registry  *Registry
	Source    TelemetrySource
	Estimator Estimator // nil disables ENRICH
	Scoring   ScoringConfig
	Encoder   FeatureEncoder

	Log     *trace.DecisionLog // optional
	Metrics *metrics.Recorder  // optional
	Clock   clock.Clock        // defaults to the wall clock

	CollectTimeout  time.Duration // per Telemetry Source call
	ForecastTimeout time.Duration // per Estimator call
	Parallelism     int           // concurrent calls per stage; <= 0 means one per backend
}

// Loop drives decision cycles: COLLECT → ENRICH → SCORE → SELECT → EMIT.
//
// At most one cycle is in flight per Loop. Decide queues behind the running
// cycle; Run's timer ticks skip instead of queueing. No score state survives
// between cycles.
type Loop struct {
	cfg  LoopConfig
	slot chan struct{} // one-slot semaphore guarding SELECT/EMIT ordering

	cycles  atomic.Uint64
	skipped atomic.Uint64
}

// NewLoop validates cfg and returns a ready Loop. A weighted forecast with no
// estimator is a *ConfigurationError.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Registry == nil {
		return nil, configErrorf("backends", "registry is required")
	}
	if cfg.Source == nil {
		return nil, configErrorf("telemetry", "telemetry source is required")
	}
	if len(cfg.Scoring.weights) == 0 {
		return nil, configErrorf("weights", "scoring config is required")
	}
	if cfg.Scoring.ForecastEnabled() && cfg.Estimator == nil {
		return nil, configErrorf("forecast.estimator", "%v: predicted_cpu_load has weight %v",
			ErrNoEstimator, cfg.Scoring.Weight(MetricPredictedCPULoad))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = DefaultCollectTimeout
	}
	if cfg.ForecastTimeout <= 0 {
		cfg.ForecastTimeout = DefaultForecastTimeout
	}
	return &Loop{cfg: cfg, slot: make(chan struct{}, 1)}, nil
}

// Registry returns the loop's backend registry.
func (l *Loop) Registry() *Registry { return l.cfg.Registry }

// Scoring returns the loop's scoring configuration.
func (l *Loop) Scoring() ScoringConfig { return l.cfg.Scoring }

// Cycles returns how many cycles have started.
func (l *Loop) Cycles() uint64 { return l.cycles.Load() }

// Skipped returns how many timer ticks were skipped because a cycle was running.
func (l *Loop) Skipped() uint64 { return l.skipped.Load() }

// Decide runs one request-driven cycle. If another cycle is in flight the
// call waits for it; if ctx ends first it returns ErrCycleInProgress.
// Once the slot is held ctx bounds nothing: the cycle is bounded by the
// per-call timeouts, so a caller deadline never shows up as backend failures.
// When every backend failed collection the error is a *CycleError wrapping
// ErrNoBackendsAvailable.
func (l *Loop) Decide(ctx context.Context) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycleInProgress, err)
	}
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCycleInProgress, ctx.Err())
	}
	defer func() { <-l.slot }()
	return l.runCycle(ctx)
}

// TryDecide runs a cycle only if none is in flight. ran is false when the
// cycle was skipped.
func (l *Loop) TryDecide(ctx context.Context) (d *Decision, ran bool, err error) {
	select {
	case l.slot <- struct{}{}:
	default:
		l.markSkipped()
		return nil, false, nil
	}
	defer func() { <-l.slot }()
	d, err = l.runCycle(ctx)
	return d, true, err
}

// Run drives timer-mode cycles every interval until ctx ends. Each cycle runs
// in its own goroutine; a tick that finds a cycle still in flight is skipped,
// never queued. handle (optional) receives every cycle's result. Run waits
// for the last cycle before returning.
func (l *Loop) Run(ctx context.Context, interval time.Duration, handle func(*Decision, error)) error {
	if interval <= 0 {
		return fmt.Errorf("run: interval must be positive, got %v", interval)
	}
	ticker := l.cfg.Clock.Ticker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			select {
			case l.slot <- struct{}{}:
			default:
				l.markSkipped()
				continue
			}
			if ctx.Err() != nil {
				<-l.slot
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-l.slot }()
				d, err := l.runCycle(ctx)
				if handle != nil {
					handle(d, err)
				}
			}()
		}
	}
}

// Register adds a backend between cycles: it waits for any in-flight cycle.
func (l *Loop) Register(ctx context.Context, b *Backend) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-l.slot }()
	return l.cfg.Registry.Register(b)
}

// Deregister removes a backend between cycles: it waits for any in-flight cycle.
func (l *Loop) Deregister(ctx context.Context, name string) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-l.slot }()
	if err := l.cfg.Registry.Deregister(name); err != nil {
		return err
	}
	l.cfg.Metrics.ForgetBackend(name)
	return nil
}

func (l *Loop) acquire(ctx context.Context) error {
	select {
	case l.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCycleInProgress, ctx.Err())
	}
}

func (l *Loop) markSkipped() {
	l.skipped.Add(1)
	l.cfg.Metrics.ObserveCycle(metrics.OutcomeSkipped, 0)
	logrus.Debugf("decision cycle skipped: previous cycle still in flight")
}

// candidate is one backend's progress through a cycle. Each collection
// goroutine writes only its own slot.
type candidate struct {
	backend    *Backend
	snapshot   MetricSnapshot
	ok         bool
	forecasted bool
	failures   []BackendFailure
}

// runCycle detaches from ctx cancellation; each COLLECT and ENRICH call
// carries its own timeout.
func (l *Loop) runCycle(ctx context.Context) (*Decision, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	at := l.cfg.Clock.Now()
	cycle := l.cycles.Add(1)
	backends := l.cfg.Registry.List()
	cands := make([]candidate, len(backends))
	for i, b := range backends {
		cands[i].backend = b
	}

	l.collect(ctx, cycle, at, cands)
	if l.cfg.Estimator != nil && l.cfg.Scoring.ForecastEnabled() {
		l.enrich(ctx, cycle, at, cands)
	}

	scored := make([]ScoredBackend, 0, len(cands))
	var failures []BackendFailure
	for i := range cands {
		c := &cands[i]
		if c.ok {
			s, err := Score(c.snapshot, l.cfg.Scoring)
			if err != nil {
				c.ok = false
				c.failures = append(c.failures, BackendFailure{Backend: c.backend.Name, Kind: FailureIncomplete, Err: err})
			} else {
				scored = append(scored, ScoredBackend{Backend: c.backend, Snapshot: c.snapshot, Score: s, Forecasted: c.forecasted})
				logrus.Debugf("[cycle %d] %s score=%.4f", cycle, c.backend.Name, s)
			}
		}
		for _, f := range c.failures {
			l.cfg.Metrics.ObserveFailure(f.Backend, string(f.Kind))
		}
		failures = append(failures, c.failures...)
	}

	winner, found := SelectBest(scored)
	if !found {
		l.cfg.Metrics.ObserveCycle(metrics.OutcomeFailed, time.Since(started))
		return nil, &CycleError{Cycle: cycle, Backends: len(backends), Failures: failures}
	}

	d := &Decision{
		Cycle:     cycle,
		Timestamp: at,
		Winner:    winner,
		Ranked:    Rank(scored),
		Failures:  failures,
	}
	l.emit(d)
	l.cfg.Metrics.ObserveCycle(metrics.OutcomeDecided, time.Since(started))
	return d, nil
}

// collect fans out one Telemetry Source call per backend and joins on all of
// them. Every call is stamped with the same cycle time.
func (l *Loop) collect(ctx context.Context, cycle uint64, at time.Time, cands []candidate) {
	var g errgroup.Group
	if l.cfg.Parallelism > 0 {
		g.SetLimit(l.cfg.Parallelism)
	}
	for i := range cands {
		c := &cands[i]
		g.Go(func() error {
			reading, err := callWithTimeout(ctx, l.cfg.CollectTimeout, func(cctx context.Context) (Reading, error) {
				return l.cfg.Source.Collect(cctx, c.backend, at)
			})
			if err != nil {
				logrus.Warnf("[cycle %d] collection failed for backend %q: %v", cycle, c.backend.Name, err)
				c.failures = append(c.failures, BackendFailure{Backend: c.backend.Name, Kind: FailureCollection, Err: err})
				return nil
			}
			snap, err := NewMetricSnapshot(reading, at)
			if err != nil {
				logrus.Warnf("[cycle %d] rejecting snapshot for backend %q: %v", cycle, c.backend.Name, err)
				c.failures = append(c.failures, BackendFailure{Backend: c.backend.Name, Kind: FailureIncomplete, Err: err})
				return nil
			}
			c.snapshot = snap
			c.ok = true
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures live on each candidate
}

// enrich asks the estimator for a forecast per collected backend. A failed
// forecast leaves the snapshot without a prediction (0 contribution).
func (l *Loop) enrich(ctx context.Context, cycle uint64, at time.Time, cands []candidate) {
	var g errgroup.Group
	if l.cfg.Parallelism > 0 {
		g.SetLimit(l.cfg.Parallelism)
	}
	for i := range cands {
		c := &cands[i]
		if !c.ok {
			continue
		}
		g.Go(func() error {
			features := l.cfg.Encoder.Encode(c.backend.Name, c.snapshot, at)
			pred, err := callWithTimeout(ctx, l.cfg.ForecastTimeout, func(fctx context.Context) (float64, error) {
				return l.cfg.Estimator.Predict(fctx, features)
			})
			if err == nil && (math.IsNaN(pred) || math.IsInf(pred, 0)) {
				err = fmt.Errorf("non-finite prediction %v", pred)
			}
			if err != nil {
				logrus.Warnf("[cycle %d] forecast failed for backend %q: %v", cycle, c.backend.Name, err)
				c.failures = append(c.failures, BackendFailure{Backend: c.backend.Name, Kind: FailureEstimation, Err: err})
				return nil
			}
			c.snapshot = c.snapshot.WithPrediction(pred)
			c.forecasted = true
			return nil
		})
	}
	_ = g.Wait()
}

func (l *Loop) emit(d *Decision) {
	logrus.Infof("[cycle %d] routed to %s (%s) score=%.3f candidates=%d failures=%d",
		d.Cycle, d.Winner.Backend.Name, d.Winner.Backend.Region, d.Winner.Score, len(d.Ranked), len(d.Failures))

	if l.cfg.Metrics != nil {
		scores := make(map[string]float64, len(d.Ranked))
		for _, sb := range d.Ranked {
			scores[sb.Backend.Name] = sb.Score
		}
		l.cfg.Metrics.ObserveDecision(d.Winner.Backend.Name, scores)
	}
	if l.cfg.Log.Enabled() {
		if err := l.cfg.Log.Record(NewDecisionRecord(d)); err != nil {
			logrus.Warnf("[cycle %d] decision log write failed: %v", d.Cycle, err)
		}
	}
}

// callWithTimeout runs fn under a deadline and returns as soon as the deadline
// passes, even if fn ignores its context.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-cctx.Done():
		var zero T
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("timed out after %v: %w", d, cctx.Err())
		}
		return zero, cctx.Err()
	}
}
