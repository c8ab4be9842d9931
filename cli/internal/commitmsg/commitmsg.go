// Package commitmsg generates commit message options from a processed diff:
// one prompt and one provider call per option, cleaned into commit.Message.
package commitmsg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"cm/cli/internal/llm"
	"cm/cli/internal/prompt"
	"cm/cli/internal/tokens"
)

// MaxOptions caps how many alternatives one request may ask for.
const MaxOptions = 4

// Options are the generation parameters shared by every call.
type Options struct {
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	// Concurrency bounds parallel calls; values below 1 mean sequential.
	Concurrency int
}

// ClampOptions limits n to 1..MaxOptions.
func ClampOptions(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxOptions:
		return MaxOptions
	default:
		return n
	}
}

// Suggest produces req.OptionCount messages (at least one). It is
// all-or-nothing: if any call or cleaning fails, the error names the failing
// option and no results are returned. Results are in option order.
func Suggest(ctx context.Context, p llm.Provider, req prompt.Request, opts Options) ([]llm.Result, error) {
	if p == nil {
		return nil, errors.New("commitmsg: nil provider")
	}
	if req.Context == nil || len(req.Context.Included) == 0 {
		return nil, errors.New("commitmsg: empty change context")
	}
	n := ClampOptions(req.OptionCount)
	req.OptionCount = n

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	results := make([]llm.Result, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := req
			r.Option = i
			res, err := generateOne(gctx, p, r, opts)
			if err != nil {
				if n == 1 {
					return err
				}
				return fmt.Errorf("option %d of %d: %w", i+1, n, err)
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func generateOne(ctx context.Context, p llm.Provider, req prompt.Request, opts Options) (*llm.Result, error) {
	text := prompt.Build(req)
	log.Debug().
		Str("provider", p.Name()).
		Int("option", req.Option+1).
		Int("prompt_bytes", len(text)).
		Int("prompt_tokens_est", tokens.Estimate(prompt.SystemPrompt)+tokens.Estimate(text)).
		Msg("generating")

	resp, err := p.Generate(ctx, text, llm.GenerateOptions{
		Model:       opts.Model,
		System:      prompt.SystemPrompt,
		Timeout:     opts.Timeout,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	msg, err := llm.Clean(resp.Text, llm.CleanOptions{
		Style:            req.Style,
		IncludeBody:      req.IncludeBody,
		Type:             req.Type,
		MaxSubjectLength: req.MaxSubjectLength,
		Ticket:           req.Ticket,
		TicketPrefix:     req.TicketPrefix,
	})
	if err != nil {
		var e *llm.Error
		if errors.As(err, &e) && e.Provider == "" {
			e.Provider = p.Name()
		}
		return nil, err
	}
	log.Debug().Str("provider", p.Name()).Dur("took", resp.Duration).Int("tokens", resp.Usage.Total()).Msg("generated")
	return &llm.Result{
		Message:  msg,
		Raw:      resp.Text,
		Provider: p.Name(),
		Model:    resp.Model,
		Usage:    resp.Usage,
	}, nil
}
