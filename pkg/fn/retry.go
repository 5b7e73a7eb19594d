package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy is the retry contract handed to resolver clients. The crawler
// itself never retries; a policy with MaxAttempts 1 disables retries.
type RetryPolicy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Multiplier scales the wait after every failed attempt. Values below 1
	// are treated as 2.
	Multiplier float64
	Jitter     bool
	// Retryable decides whether an error is worth another attempt.
	// nil means every error is retried.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetry is three attempts starting at 2s, growing exponentially.
var DefaultRetry = RetryPolicy{
	MaxAttempts: 3,
	InitialWait: 2 * time.Second,
	MaxWait:     30 * time.Second,
	Multiplier:  2,
	Jitter:      true,
}

// Backoff returns the wait before the given retry (1-based), without jitter.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	wait := float64(p.InitialWait)
	for i := 1; i < retry; i++ {
		wait *= mult
		if p.MaxWait > 0 && wait > float64(p.MaxWait) {
			return p.MaxWait
		}
	}
	d := time.Duration(wait)
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	return d
}

// Retry runs f until it succeeds, the policy is exhausted, the error is not
// retryable, or ctx is done.
func Retry[T any](ctx context.Context, p RetryPolicy, f func(context.Context) Result[T]) Result[T] {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var result Result[T]
	for attempt := 1; attempt <= attempts; attempt++ {
		result = f(ctx)
		if result.IsOk() {
			return result
		}
		if attempt == attempts {
			break
		}
		err := result.Err()
		if p.Retryable != nil && !p.Retryable(err) {
			break
		}
		if ctx.Err() != nil {
			return Err[T](ctx.Err())
		}

		wait := p.Backoff(attempt)
		if p.Jitter {
			wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
			if p.MaxWait > 0 && wait > p.MaxWait {
				wait = p.MaxWait
			}
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Err[T](ctx.Err())
		case <-timer.C:
		}
	}
	return result
}
