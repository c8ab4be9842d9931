package ollama

import (
	"context"
	"time"

	"cm/cli/internal/llm"
)

// Provider adapts Client to llm.Provider.
type Provider struct {
	client *Client
	model  string
}

// NewProvider returns a provider that generates with model (DefaultModel when empty).
func NewProvider(client *Client, model string) *Provider {
	if model == "" {
		model = DefaultModel
	}
	return &Provider{client: client, model: model}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Model returns the configured model.
func (p *Provider) Model() string { return p.model }

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.Response, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}
	callCtx, cancel := llm.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	out, err := p.client.Generate(callCtx, model, opts.System, prompt, &GenerateOptions{
		Temperature: opts.Temperature,
		NumPredict:  llm.DefaultMaxTokens(opts.MaxTokens),
	})
	if err != nil {
		return nil, err
	}
	resp := &llm.Response{
		Text:     out.Response,
		Model:    model,
		Duration: time.Since(start),
	}
	if out.Model != "" {
		resp.Model = out.Model
	}
	if out.PromptEvalCount > 0 || out.EvalCount > 0 {
		resp.Usage = &llm.Usage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount}
	}
	return resp, nil
}

// Available reports nil when the server answers /api/tags.
func (c *Client) Available(ctx context.Context) error {
	_, err := c.Check(ctx, "")
	return err
}
