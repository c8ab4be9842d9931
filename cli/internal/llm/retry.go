package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/siderolabs/go-retry/retry"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	// Delay is the pause between calls.
	Delay time.Duration
}

// DefaultRetryPolicy retries a connection failure or timeout exactly once.
var DefaultRetryPolicy = RetryPolicy{Attempts: 2, Delay: 500 * time.Millisecond}

type retryingProvider struct {
	Provider
	policy RetryPolicy
}

// WithRetry wraps p so that ErrConnection and ErrTimeout are retried with
// identical parameters up to policy.Attempts calls in total. Every other
// failure, and cancellation of ctx, returns immediately.
func WithRetry(p Provider, policy RetryPolicy) Provider {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Delay <= 0 {
		policy.Delay = DefaultRetryPolicy.Delay
	}
	return &retryingProvider{Provider: p, policy: policy}
}

// Unwrap returns the wrapped provider.
func (r *retryingProvider) Unwrap() Provider { return r.Provider }

func (r *retryingProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Response, error) {
	var (
		resp    *Response
		lastErr error
		attempt int
	)
	err := retry.Constant(r.window(opts.Timeout), retry.WithUnits(r.policy.Delay)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			attempt++
			out, genErr := r.Provider.Generate(ctx, prompt, opts)
			if genErr == nil {
				resp = out
				lastErr = nil
				return nil
			}
			lastErr = genErr
			if attempt >= r.policy.Attempts || !Retryable(genErr) || ctx.Err() != nil {
				return genErr
			}
			log.Warn().Err(genErr).Str("provider", r.Name()).Int("attempt", attempt).Msg("transient failure, retrying")
			return retry.ExpectedError(genErr)
		})
	if resp != nil {
		return resp, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, err
}

// window is the overall retry deadline: every attempt may use its full
// timeout plus the pause before it.
func (r *retryingProvider) window(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return time.Duration(r.policy.Attempts) * (timeout + r.policy.Delay)
}
