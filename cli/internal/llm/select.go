package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ProbeTimeout bounds each availability probe during auto-selection. Probes
// are not retried.
const ProbeTimeout = 2 * time.Second

// Auto asks Select to pick the first available candidate.
const Auto = "auto"

// Candidate is a provider Select may choose.
type Candidate struct {
	Name string
	// Available reports nil when the provider can serve requests. It is called
	// only during auto-selection, with a context bounded by ProbeTimeout.
	Available func(ctx context.Context) error
	// New constructs the provider.
	New func() (Provider, error)
	// Hint tells the user how to make this provider available.
	Hint string
}

// Select returns the provider named by requested. For an explicit name the
// provider is constructed without probing and construction errors are
// returned as-is. For Auto (or ""), candidates are probed in order and the
// first available one wins; when none is, the error is ErrProviderUnavailable.
func Select(ctx context.Context, requested string, candidates []Candidate) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(requested))
	if name != "" && name != Auto {
		for _, c := range candidates {
			if strings.EqualFold(c.Name, name) {
				return c.New()
			}
		}
		return nil, fmt.Errorf("unknown provider %q; use %s", requested, strings.Join(names(candidates), ", "))
	}

	var (
		reasons []error
		hints   []string
	)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
		err := c.Available(probeCtx)
		cancel()
		if err == nil {
			p, newErr := c.New()
			if newErr == nil {
				log.Debug().Str("provider", c.Name).Msg("auto-selected provider")
				return p, nil
			}
			err = newErr
		}
		log.Debug().Err(err).Str("provider", c.Name).Msg("provider unavailable")
		reasons = append(reasons, fmt.Errorf("%s: %w", c.Name, err))
		if c.Hint != "" {
			hints = append(hints, c.Hint)
		}
	}
	return nil, &Error{
		Kind: ErrProviderUnavailable,
		Hint: strings.Join(hints, "\nor: "),
		Err:  errors.Join(reasons...),
	}
}

func names(candidates []Candidate) []string {
	out := []string{Auto}
	for _, c := range candidates {
		out = append(out, c.Name)
	}
	return out
}
