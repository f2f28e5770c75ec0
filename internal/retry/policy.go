// Package retry provides the bounded backoff policy used for transient
// source synchronization failures. Build and patch steps are never retried.
package retry

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/libforge/internal/config"
)

// Policy is a retry budget plus the delay curve between attempts.
type Policy struct {
	Mode    config.RetryBackoffMode
	Initial time.Duration
	Max     time.Duration
	// MaxRetries counts retries after the first attempt.
	MaxRetries int
}

// DefaultPolicy is exponential from 1s, capped at 30s, with two retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffExponential, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewPolicy overlays the given values on DefaultPolicy. Non-positive
// durations, negative retry counts and unknown modes keep the default.
// Initial is clamped to Max.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if _, ok := curves[mode]; ok {
		p.Mode = mode
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// FromConfig builds a policy from the project's retry section.
func FromConfig(rc config.RetryConfig) Policy {
	initial, maxDelay := rc.RetryDurations()
	retries := -1
	if rc.MaxRetries != nil {
		retries = *rc.MaxRetries
	}
	return NewPolicy(rc.Backoff, initial, maxDelay, retries)
}

// curves give the delay before retry n (n >= 1), capped at maxDelay.
var curves = map[config.RetryBackoffMode]func(initial, maxDelay time.Duration, n int) time.Duration{
	config.RetryBackoffFixed: func(initial, maxDelay time.Duration, _ int) time.Duration {
		return min(initial, maxDelay)
	},
	config.RetryBackoffLinear: func(initial, maxDelay time.Duration, n int) time.Duration {
		if initial > maxDelay/time.Duration(n) {
			return maxDelay
		}
		return time.Duration(n) * initial
	},
	config.RetryBackoffExponential: func(initial, maxDelay time.Duration, n int) time.Duration {
		if n > 62 || initial > maxDelay>>(n-1) {
			return maxDelay
		}
		return initial << (n - 1)
	},
}

// Delay is the wait before retry n, counting from 1. It is zero for n < 1
// and never exceeds Max. Unknown modes back off linearly.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	curve, ok := curves[p.Mode]
	if !ok {
		curve = curves[config.RetryBackoffLinear]
	}
	return curve(p.Initial, p.Max, n)
}

// Attempts is the total number of tries, the first one included.
func (p Policy) Attempts() int { return p.MaxRetries + 1 }

func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return fmt.Errorf("retry policy: initial delay must be positive, got %s", p.Initial)
	case p.Max <= 0:
		return fmt.Errorf("retry policy: max delay must be positive, got %s", p.Max)
	case p.MaxRetries < 0:
		return fmt.Errorf("retry policy: negative retry count %d", p.MaxRetries)
	}
	return nil
}

// Hooks customize Do. All fields are optional.
type Hooks struct {
	// Permanent reports errors that must not be retried.
	Permanent func(error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(retry int, delay time.Duration, err error)
	// Sleep replaces the timer; it must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it succeeds, fails permanently or the budget runs out,
// and returns the number of calls made with the last error. Cancelling ctx
// stops the loop, including during a backoff sleep.
func (p Policy) Do(ctx context.Context, hooks Hooks, fn func(ctx context.Context) error) (int, error) {
	sleep := hooks.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	permanent := hooks.Permanent
	if permanent == nil {
		permanent = func(error) bool { return false }
	}

	err := fn(ctx)
	calls := 1
	for ; err != nil && calls <= p.MaxRetries; calls++ {
		if permanent(err) {
			return calls, err
		}
		if ctx.Err() != nil {
			return calls, fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		delay := p.Delay(calls)
		if hooks.OnRetry != nil {
			hooks.OnRetry(calls, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return calls, fmt.Errorf("retry aborted: %w", serr)
		}
		err = fn(ctx)
	}
	return calls, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
