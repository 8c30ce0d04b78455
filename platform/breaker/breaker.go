// Package breaker provides circuit breaker infrastructure for external
// capability calls. This is part of the platform layer and contains no
// business logic.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

// State is the breaker lifecycle state.
type State int

const (
	// StateClosed passes calls through and counts failures.
	StateClosed State = iota
	// StateOpen short-circuits calls and returns the fallback.
	StateOpen
	// StateHalfOpen admits exactly one trial call after the cool-down.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Options configures a breaker for one dependency.
type Options struct {
	// FailureThreshold is the number of failures within Window that opens
	// the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before admitting a trial.
	Cooldown time.Duration
	// Window is the rolling interval over which failures are counted.
	Window time.Duration
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.Cooldown <= 0 {
		o.Cooldown = time.Minute
	}
	if o.Window <= 0 {
		o.Window = time.Minute
	}
	return o
}

// Breaker wraps calls to one external dependency. While open it returns the
// registered fallback value with a nil error, so callers never observe the
// outage as an exceptional condition.
type Breaker[T any] struct {
	name     string
	opts     Options
	fallback T
	log      *logger.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       State
	failures    []time.Time
	openedAt    time.Time
	trialActive bool
}

// New creates a breaker for the named dependency with the given fallback.
func New[T any](name string, fallback T, opts Options, log *logger.Logger) *Breaker[T] {
	return &Breaker[T]{
		name:     name,
		opts:     opts.withDefaults(),
		fallback: fallback,
		log:      log,
		now:      time.Now,
	}
}

// State returns the current breaker state.
func (b *Breaker[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Fallback returns the deterministic fallback value.
func (b *Breaker[T]) Fallback() T {
	return b.fallback
}

// Execute runs the call through the breaker. In the open state, or while a
// half-open trial is already in flight, it returns the fallback value and a
// nil error. In the closed state the call's own result and error pass
// through; failures (including context deadline expiry) are counted toward
// the threshold.
func (b *Breaker[T]) Execute(ctx context.Context, call func(ctx context.Context) (T, error)) (T, error) {
	trial, admitted := b.admit()
	if !admitted {
		return b.fallback, nil
	}

	result, err := call(ctx)
	if trial {
		b.settleTrial(err == nil)
	} else {
		b.record(err == nil)
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// admit decides whether the call may proceed. The second return value is
// false when the breaker short-circuits; the first is true when the call is
// the single half-open trial.
func (b *Breaker[T]) admit() (trial bool, admitted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.opts.Cooldown {
			return false, false
		}
		b.transition(StateHalfOpen)
		b.trialActive = true
		return true, true
	default: // StateHalfOpen
		if b.trialActive {
			return false, false
		}
		b.trialActive = true
		return true, true
	}
}

// record tracks a closed-state outcome and opens the breaker at the threshold.
func (b *Breaker[T]) record(success bool) {
	if success {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		return
	}

	now := b.now()
	cutoff := now.Add(-b.opts.Window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = append(kept, now)

	if len(b.failures) >= b.opts.FailureThreshold {
		b.transition(StateOpen)
		b.openedAt = now
		b.failures = nil
	}
}

// settleTrial resolves the half-open trial: success closes the breaker and
// resets the failure count, failure reopens it immediately.
func (b *Breaker[T]) settleTrial(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialActive = false
	if success {
		b.transition(StateClosed)
		b.failures = nil
		return
	}
	b.transition(StateOpen)
	b.openedAt = b.now()
}

func (b *Breaker[T]) transition(to State) {
	if b.state == to {
		return
	}
	if b.log != nil {
		b.log.BreakerEvent(b.name, b.state.String(), to.String())
	}
	b.state = to
}
