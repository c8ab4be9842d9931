// Package anthropic calls the Anthropic Messages API as a remote commit
// message provider.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cm/cli/internal/llm"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-20250514"
	// ProviderName identifies this provider in config and messages.
	ProviderName = "claude"
	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv = "ANTHROPIC_API_KEY"

	_apiVersion   = "2023-06-01"
	_maxErrorBody = 8 << 10
)

// ErrNoAPIKey is returned by NewClient when the key is empty.
var ErrNoAPIKey = errors.New(APIKeyEnv + " is not set")

// Client is a Messages API client. Zero value is not valid; use NewClient.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Options configures NewClient. Empty fields take defaults.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client, or ErrNoAPIKey when opts.APIKey is blank.
func NewClient(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: ProviderName, Hint: "export " + APIKeyEnv + "=sk-ant-...", Err: ErrNoAPIKey}
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:     key,
		model:      opts.Model,
		httpClient: opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderName }

// Model returns the configured model.
func (c *Client) Model() string { return c.model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Type    string `json:"type"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements llm.Provider with a single user message.
func (c *Client) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (*llm.Response, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	reqBody := messagesRequest{
		Model:       model,
		MaxTokens:   llm.DefaultMaxTokens(opts.MaxTokens),
		System:      opts.System,
		Temperature: opts.Temperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("claude: encode request: %w", err)
	}

	callCtx, cancel := llm.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("claude: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", _apiVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, model)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	var out messagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &llm.Error{Kind: llm.ErrMalformedResponse, Provider: ProviderName, Raw: string(body), Err: fmt.Errorf("decode response: %w", err)}
	}
	var text strings.Builder
	for _, part := range out.Content {
		if part.Type == "" || part.Type == "text" {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &llm.Error{Kind: llm.ErrMalformedResponse, Provider: ProviderName, Raw: string(body), Err: errors.New("response has no text content")}
	}
	r := &llm.Response{
		Text:     text.String(),
		Model:    model,
		Duration: time.Since(start),
		Usage:    &llm.Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens},
	}
	if out.Model != "" {
		r.Model = out.Model
	}
	return r, nil
}

func (c *Client) transportError(parent context.Context, err error) error {
	classified := llm.Classify(parent, ProviderName, err)
	var e *llm.Error
	if errors.As(classified, &e) {
		if errors.Is(e.Kind, llm.ErrTimeout) {
			e.Hint = "Raise CM_TIMEOUT or try again."
		} else {
			e.Hint = "Check your network connection to " + c.baseURL + "."
		}
	}
	return classified
}

func statusError(resp *http.Response, model string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, _maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		msg = body.Error.Type + ": " + body.Error.Message
	}
	e := &llm.Error{Kind: llm.ErrRejected, Provider: ProviderName, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Hint = "Check " + APIKeyEnv + ": export " + APIKeyEnv + "=sk-ant-..."
	case http.StatusNotFound:
		e.Kind = llm.ErrModelNotFound
		e.Hint = fmt.Sprintf("Model %q is not available; set --model or CM_MODEL.", model)
	case http.StatusTooManyRequests:
		e.Hint = "Rate limited; wait and try again."
	}
	return e
}
