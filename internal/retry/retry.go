// Package retry reopens Gemini streams and repeats backend calls that fail
// with transient errors, backing off exponentially between attempts.
package retry

import (
	"context"
	"iter"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Policy bounds how often and how patiently a call is repeated.
type Policy struct {
	// Attempts is the total number of tries, the first one included.
	// Values below one behave like one.
	Attempts int

	// Base is the wait after the first failure.
	Base time.Duration

	// Cap bounds any single wait.
	Cap time.Duration

	// Factor scales the wait after each further failure.
	Factor float64

	// Jitter spreads each wait by up to this fraction in either direction.
	Jitter float64
}

// DefaultPolicy is tuned for interactive runs: three tries, waiting 500ms
// and then 1s, never more than 5s, spread by 10%.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Base:     500 * time.Millisecond,
		Cap:      5 * time.Second,
		Factor:   2,
		Jitter:   0.1,
	}
}

// NoRetry makes a single attempt.
func NoRetry() Policy {
	return Policy{Attempts: 1}
}

// Backoff returns the wait after failed attempt n, counted from zero.
func (p Policy) Backoff(n int) time.Duration {
	n = max(n, 0)
	d := min(float64(p.Base)*math.Pow(p.Factor, float64(n)), float64(p.Cap))
	if p.Jitter > 0 {
		d *= 1 + p.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

func (p Policy) attempts() int {
	return max(p.Attempts, 1)
}

// Do calls fn until it succeeds, fails permanently or runs out of
// attempts, and returns the last error. Waits stop early when ctx ends.
func Do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var zero T
	var err error
	for n := range p.attempts() {
		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		if !IsTransient(err) || n == p.attempts()-1 {
			break
		}
		if werr := wait(ctx, p.Backoff(n)); werr != nil {
			return zero, werr
		}
	}
	return zero, err
}

// Seq reopens a stream that fails transiently before yielding anything.
// Once an item has reached the consumer, a failure is passed through.
func Seq[T any](ctx context.Context, p Policy, open func() iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for n := range p.attempts() {
			started := false
			var failure error
			for item, err := range open() {
				if err != nil {
					failure = err
					break
				}
				started = true
				if !yield(item, nil) {
					return
				}
			}
			if failure == nil {
				return
			}
			if started || n == p.attempts()-1 || !IsTransient(failure) {
				yield(zero, failure)
				return
			}

			delay := p.Backoff(n)
			slog.Debug("reopening stream", "attempt", n+1, "delay", delay, "error", failure)
			if err := wait(ctx, delay); err != nil {
				yield(zero, err)
				return
			}
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
