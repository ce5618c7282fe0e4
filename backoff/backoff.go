// Package backoff computes the delay the error handling stage waits
// before re-dispatching a stage that failed on a transient error. The
// strategy is selected by workflow configuration; all strategies are
// stateless and safe for concurrent use.
package backoff

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed).
// Attempt 1 is the first retry after the initial failure.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Strategy names accepted by Parse and Config.RetryBackoff.
const (
	KindConstant          = "constant"
	KindLinear            = "linear"
	KindExponential       = "exponential"
	KindExponentialJitter = "exponential_jitter"
)

// Parse builds a Strategy from a configured name. The initial duration
// seeds the first delay; maxDelay caps growth for the growing
// strategies (zero means uncapped).
func Parse(kind string, initial, maxDelay time.Duration) (Strategy, error) {
	switch kind {
	case KindConstant:
		return NewConstant(initial), nil
	case KindLinear:
		return NewLinear(initial, maxDelay), nil
	case KindExponential:
		return NewExponential(initial, maxDelay), nil
	case KindExponentialJitter, "":
		return NewExponentialWithJitter(initial, maxDelay), nil
	default:
		return nil, fmt.Errorf("backoff: unknown strategy %q", kind)
	}
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant waits the same interval before every retry. Useful when the
// reasoning backend enforces its own rate limiting, and in tests that
// want a zero delay.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear grows the delay by one initial interval per attempt:
// min(Initial * attempt, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt:
// min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter draws a random delay in
// [0, min(Initial * 2^(attempt-1), Max)]. Several negotiations failing
// against the same reasoning backend at once retry spread out instead
// of in lockstep.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// defaults mirror DefaultConfig's retry settings.
const (
	defaultInitial = 1 * time.Second
	defaultMax     = 30 * time.Second
)

// DefaultStrategy returns the engine's default: exponential with full
// jitter, 1s initial and 30s max.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(defaultInitial, defaultMax)
}
