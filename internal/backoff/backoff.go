// Package backoff implements the exponential delay sequence used between
// reconnection attempts. The calculator is pure: it computes delays and
// tracks attempts, but never sleeps — the reconnect loop owns the waiting.
package backoff

import (
	"errors"
	"fmt"
	"time"
)

// Default backoff parameters for WebSocket reconnection.
const (
	// DefaultInitialDelay is the delay before the first retry.
	DefaultInitialDelay = 1 * time.Second
	// DefaultMaxDelay caps the exponential growth.
	DefaultMaxDelay = 30 * time.Second
	// DefaultMaxAttempts is the default retry budget.
	DefaultMaxAttempts = 10
)

// ErrInvalidConfig indicates invalid backoff construction parameters.
var ErrInvalidConfig = errors.New("invalid backoff configuration")

// ErrUnlimitedAttempts indicates an operation that is undefined when no
// attempt bound is configured.
var ErrUnlimitedAttempts = errors.New("backoff has no attempt limit")

// Backoff calculates exponentially increasing delays, capped at a maximum.
//
// Delay for attempt n is min(initial * 2^n, max); with initial=1s, max=30s
// the sequence is 1s, 2s, 4s, 8s, 16s, 30s, 30s, ...
//
// A Backoff is single-owner: it is created per reconnect-attempt sequence
// and is not safe for concurrent use.
type Backoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	maxAttempts  int
	limited      bool
	attempt      int
}

// New creates a backoff calculator with unlimited retry attempts:
// ShouldGiveUp always reports false.
func New(initial, max time.Duration) (*Backoff, error) {
	return newBackoff(initial, max, 0, false)
}

// NewWithMaxAttempts creates a backoff calculator that gives up once
// maxAttempts delays have been consumed. maxAttempts of 0 gives up
// immediately, before any delay is issued.
func NewWithMaxAttempts(initial, max time.Duration, maxAttempts int) (*Backoff, error) {
	return newBackoff(initial, max, maxAttempts, true)
}

func newBackoff(initial, max time.Duration, maxAttempts int, limited bool) (*Backoff, error) {
	if initial <= 0 {
		return nil, fmt.Errorf("%w: initial delay must be positive, got %v", ErrInvalidConfig, initial)
	}
	if max < initial {
		return nil, fmt.Errorf("%w: max delay %v must be >= initial delay %v", ErrInvalidConfig, max, initial)
	}
	if limited && maxAttempts < 0 {
		return nil, fmt.Errorf("%w: max attempts must be non-negative, got %d", ErrInvalidConfig, maxAttempts)
	}

	return &Backoff{
		initialDelay: initial,
		maxDelay:     max,
		maxAttempts:  maxAttempts,
		limited:      limited,
	}, nil
}

// NextDelay returns the delay for the current attempt and increments the
// attempt counter. Once the sequence reaches the cap it never decreases.
func (b *Backoff) NextDelay() time.Duration {
	delay := b.delayFor(b.attempt)
	b.attempt++
	return delay
}

// delayFor computes min(initial * 2^n, max) by repeated doubling so large n
// cannot overflow the duration.
func (b *Backoff) delayFor(n int) time.Duration {
	delay := b.initialDelay
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= b.maxDelay || delay < 0 {
			return b.maxDelay
		}
	}
	if delay > b.maxDelay {
		return b.maxDelay
	}
	return delay
}

// ShouldGiveUp reports whether the attempt budget is exhausted. It is always
// false for an unlimited calculator.
func (b *Backoff) ShouldGiveUp() bool {
	if !b.limited {
		return false
	}
	return b.attempt >= b.maxAttempts
}

// Reset zeroes the attempt counter. Call after a successful reconnection so
// future failures start the sequence over.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// TotalWaitTime sums the capped delay series across the full attempt budget.
// It returns ErrUnlimitedAttempts when no bound is configured: the total is
// undefined for an unbounded sequence.
func (b *Backoff) TotalWaitTime() (time.Duration, error) {
	if !b.limited {
		return 0, ErrUnlimitedAttempts
	}

	var total time.Duration
	for i := 0; i < b.maxAttempts; i++ {
		total += b.delayFor(i)
	}
	return total, nil
}

// Attempt returns the current attempt counter (0-indexed).
func (b *Backoff) Attempt() int {
	return b.attempt
}

// InitialDelay returns the configured initial delay.
func (b *Backoff) InitialDelay() time.Duration {
	return b.initialDelay
}

// MaxDelay returns the configured delay cap.
func (b *Backoff) MaxDelay() time.Duration {
	return b.maxDelay
}

// MaxAttempts returns the attempt budget and whether one is configured.
func (b *Backoff) MaxAttempts() (int, bool) {
	return b.maxAttempts, b.limited
}

// String describes the calculator state for diagnostics.
func (b *Backoff) String() string {
	if !b.limited {
		return fmt.Sprintf("Backoff(initial=%v, max=%v, attempts=unlimited, current=%d)",
			b.initialDelay, b.maxDelay, b.attempt)
	}
	return fmt.Sprintf("Backoff(initial=%v, max=%v, attempts=%d, current=%d)",
		b.initialDelay, b.maxDelay, b.maxAttempts, b.attempt)
}
