// Package providers maps provider names to constructors and availability
// probes, local first.
package providers

import (
	"context"
	"net/http"

	"cm/cli/internal/anthropic"
	"cm/cli/internal/llm"
	"cm/cli/internal/ollama"
)

// Settings is what the registry needs to build providers.
type Settings struct {
	// Model overrides the provider default when set.
	Model      string
	OllamaHost string
	APIKey     string
	// AnthropicBaseURL overrides the public endpoint; tests point it at httptest.
	AnthropicBaseURL string
	HTTPClient       *http.Client
}

// Candidates returns the registered providers in auto-selection order.
func Candidates(s Settings) []llm.Candidate {
	client := ollama.NewClient(s.OllamaHost, s.HTTPClient)
	return []llm.Candidate{
		{
			Name:      ollama.ProviderName,
			Available: client.Available,
			New: func() (llm.Provider, error) {
				return ollama.NewProvider(client, s.Model), nil
			},
			Hint: "start Ollama (ollama serve) at " + client.BaseURL(),
		},
		{
			Name: anthropic.ProviderName,
			Available: func(context.Context) error {
				if s.APIKey == "" {
					return anthropic.ErrNoAPIKey
				}
				return nil
			},
			New: func() (llm.Provider, error) {
				c, err := anthropic.NewClient(anthropic.Options{
					APIKey:     s.APIKey,
					Model:      s.Model,
					BaseURL:    s.AnthropicBaseURL,
					HTTPClient: s.HTTPClient,
				})
				if err != nil {
					return nil, err
				}
				return c, nil
			},
			Hint: "export " + anthropic.APIKeyEnv + "=sk-ant-...",
		},
	}
}

// Select resolves requested ("auto", "ollama" or "claude") to a provider
// wrapped with the default retry policy.
func Select(ctx context.Context, requested string, s Settings) (llm.Provider, error) {
	p, err := llm.Select(ctx, requested, Candidates(s))
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(p, llm.DefaultRetryPolicy), nil
}

// Model returns the model p will use.
func Model(p llm.Provider) string {
	type modeler interface{ Model() string }
	if m, ok := p.(modeler); ok {
		return m.Model()
	}
	if u, ok := p.(interface{ Unwrap() llm.Provider }); ok {
		return Model(u.Unwrap())
	}
	return ""
}
