package router

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteSnapshot marks a reading that lacks a required base metric
	// or carries an out-of-range value.
	ErrIncompleteSnapshot = errors.New("incomplete snapshot")

	// ErrNoBackendsAvailable is returned by a cycle in which every backend
	// failed collection (or the registry is empty).
	ErrNoBackendsAvailable = errors.New("no backends available")

	// ErrCycleInProgress is returned when a caller gives up waiting for the
	// in-flight cycle to finish.
	ErrCycleInProgress = errors.New("decision cycle in progress")

	ErrBackendExists   = errors.New("backend already registered")
	ErrBackendNotFound = errors.New("backend not found")

	// ErrNoEstimator is returned when a forecast weight is configured but no
	// estimator is.
	ErrNoEstimator = errors.New("no forecast estimator configured")
)

// ConfigurationError reports an invalid startup configuration.
// It is fatal: the process refuses to start.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is (or wraps) a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// FailureKind classifies a recoverable per-backend failure within a cycle.
type FailureKind string

const (
	// FailureCollection: the Telemetry Source errored or timed out.
	FailureCollection FailureKind = "collection"
	// FailureIncomplete: the reading was missing a required metric.
	// The backend is excluded exactly like a collection failure.
	FailureIncomplete FailureKind = "incomplete"
	// FailureEstimation: the Forecast Estimator errored or timed out.
	// The backend is still ranked, without a forecast contribution.
	FailureEstimation FailureKind = "estimation"
)

// Excludes reports whether a failure of this kind removes the backend from
// the cycle's ranking.
func (k FailureKind) Excludes() bool {
	return k == FailureCollection || k == FailureIncomplete
}

// BackendFailure records one recoverable failure for one backend in one cycle.
type BackendFailure struct {
	Backend string
	Kind    FailureKind
	Err     error
}

func (f BackendFailure) Error() string {
	return fmt.Sprintf("%s failure for backend %q: %v", f.Kind, f.Backend, f.Err)
}

func (f BackendFailure) Unwrap() error { return f.Err }

// CycleError reports a cycle that produced no Decision because no backend
// survived COLLECT. It unwraps to ErrNoBackendsAvailable.
type CycleError struct {
	Cycle    uint64
	Backends int
	Failures []BackendFailure
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d: %v (%d of %d backends failed)", e.Cycle, ErrNoBackendsAvailable, len(e.Failures), e.Backends)
}

func (e *CycleError) Unwrap() error { return ErrNoBackendsAvailable }
