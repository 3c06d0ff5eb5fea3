package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryProvider is a decorator that retries rate-limited calls with
// exponential backoff and jitter. Every other error is returned at once.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps a Provider with rate-limit retry logic.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	return &RetryProvider{inner: p, config: cfg, sleep: sleepCtx}
}

// Generate makes at most MaxRetries+1 calls to the wrapped provider.
func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff(attempt, lastErr)); err != nil {
				return nil, err
			}
		}

		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var rl *ErrRateLimit
		if !errors.As(err, &rl) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// backoff computes the wait before retry number attempt (1-based):
// InitialDelay * 2^(attempt-1) + uniform(0, JitterMax), capped at MaxDelay.
// A longer RetryAfter from the provider wins.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	wait := float64(r.config.InitialDelay) * math.Pow(2, float64(attempt-1))
	if r.config.MaxDelay > 0 && wait > float64(r.config.MaxDelay) {
		wait = float64(r.config.MaxDelay)
	}
	if r.config.JitterMax > 0 {
		wait += rand.Float64() * float64(r.config.JitterMax)
	}

	d := time.Duration(wait)
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > d {
		d = rl.RetryAfter
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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

// TimeoutProvider bounds every underlying call with its own deadline. It
// sits inside the retry loop, so backoff sleeps do not eat into it.
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout wraps a Provider so each call is cancelled after d.
// A zero or negative d disables the bound.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &TimeoutProvider{inner: p, timeout: d}
}

func (t *TimeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *TimeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
