// Package bspssepyerr defines the error kinds shared across the restoration
// simulator's core packages (§7 of the design spec). Every fallible
// operation in registry, ops, lifecycle, agc and dispatcher returns one of
// these kinds wrapped in *Error, so callers can classify failures with
// errors.As/Is instead of string matching.
package bspssepyerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories the core surfaces.
type Kind string

const (
	// KindInvalidConfig marks an unsatisfiable policy combination or a
	// missing required configuration field. Fatal to Load/Run.
	KindInvalidConfig Kind = "InvalidConfig"

	// KindUnknownDevice marks a plan row or operation referencing a
	// device name that does not resolve in the registry.
	KindUnknownDevice Kind = "UnknownDevice"

	// KindMalformedRow marks a control-plan row that failed
	// canonicalization.
	KindMalformedRow Kind = "MalformedRow"

	// KindGeneratorOwned marks a plan action targeting a genControlled
	// branch or transformer directly instead of through the generator
	// lifecycle.
	KindGeneratorOwned Kind = "GeneratorOwned"

	// KindPrematureEnergization marks a GEN.on attempted while a
	// neighbor of the generator bus is already closed.
	KindPrematureEnergization Kind = "PrematureEnergization"

	// KindSolverError marks a non-nil return from a Solver Gateway call.
	KindSolverError Kind = "SolverError"

	// KindFrequencyUnavailable marks a NaN frequency sample; AGC skips
	// the tick but the error is not otherwise propagated.
	KindFrequencyUnavailable Kind = "FrequencyUnavailable"

	// KindHardTimeLimitExceeded is terminal: the configured wall-clock
	// cap elapsed before the plan finished.
	KindHardTimeLimitExceeded Kind = "HardTimeLimitExceeded"

	// KindCanceled is terminal: the run context was canceled.
	KindCanceled Kind = "Canceled"
)

// Error is the concrete error type returned by the core. Op names the
// operation that failed (e.g. "BRN.close", "Dispatcher.Load") for log
// correlation; Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for kind, optionally wrapping cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err (or any error it wraps) carries kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind carried by err, and whether err is a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
