// Package llm is the provider-neutral side of commit message generation:
// the Provider contract, the error taxonomy, transient-failure retry,
// provider selection and cleaning of raw model output.
package llm

import (
	"context"
	"time"

	"cm/cli/internal/commit"
)

// Provider produces text for a prompt. Implementations must honor ctx
// cancellation and opts.Timeout, and return errors whose kind is one of the
// sentinels in this package.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Response, error)
}

// GenerateOptions are per-call parameters. Zero values mean provider default.
type GenerateOptions struct {
	Model       string
	System      string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Usage is token accounting reported by the provider, when it reports any.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u *Usage) Total() int {
	if u == nil {
		return 0
	}
	return u.InputTokens + u.OutputTokens
}

// Response is raw provider output.
type Response struct {
	Text     string
	Model    string
	Usage    *Usage
	Duration time.Duration
}

// Result is one cleaned commit message option.
type Result struct {
	Message  commit.Message
	Raw      string
	Provider string
	Model    string
	Usage    *Usage
}

// _defaultMaxTokens caps generated output; a commit message never needs more.
const _defaultMaxTokens = 1000

// DefaultMaxTokens returns n, or the package default when n <= 0.
func DefaultMaxTokens(n int) int {
	if n <= 0 {
		return _defaultMaxTokens
	}
	return n
}

// WithTimeout derives the per-call context. A zero timeout only adds
// cancellation.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
