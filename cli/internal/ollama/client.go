// Package ollama provides an HTTP client for a local Ollama server: health
// check, model list, loaded models, generation and warm-up.
package ollama

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
	// DefaultHost is used when OLLAMA_HOST is unset.
	DefaultHost = "http://localhost:11434"
	// DefaultModel is the local model used when none is configured.
	DefaultModel = "mistral:7b"
	// ProviderName identifies this provider in config and messages.
	ProviderName = "ollama"

	_defaultTimeout = 10 * time.Second
	_keepAlive      = "10m"
	_maxErrorBody   = 4 << 10
)

// ErrUnreachable indicates the Ollama server could not be reached (connection refused, timeout, or non-2xx).
var ErrUnreachable = errors.New("ollama server unreachable")

// Client calls the Ollama API. Zero value is not valid; use NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// CheckResult is the result of a health/model check.
type CheckResult struct {
	Reachable    bool     // Server responded with 200.
	ModelPresent bool     // Requested model name appears in the tags list.
	ModelNames   []string // All model names from /api/tags (for diagnostics).
}

// NewClient builds an Ollama client. baseURL is the API root (e.g. http://localhost:11434).
// If httpClient is nil, a client without an overall timeout is used; Check
// and Loaded bound themselves, Generate uses the per-call timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultHost
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Check verifies the server is reachable and whether the given model is present.
// It GETs /api/tags and parses the response. On connection/HTTP error returns ErrUnreachable (via %w).
func (c *Client) Check(ctx context.Context, model string) (*CheckResult, error) {
	ctx, cancel := boundedCtx(ctx)
	defer cancel()
	var body tagsResponse
	if err := c.getJSON(ctx, "/api/tags", &body); err != nil {
		return nil, fmt.Errorf("ollama tags: %w", err)
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	return &CheckResult{
		Reachable:    true,
		ModelPresent: hasModel(names, model),
		ModelNames:   names,
	}, nil
}

type psResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Loaded returns the names of models currently held in memory (GET /api/ps).
func (c *Client) Loaded(ctx context.Context) ([]string, error) {
	ctx, cancel := boundedCtx(ctx)
	defer cancel()
	var body psResponse
	if err := c.getJSON(ctx, "/api/ps", &body); err != nil {
		return nil, fmt.Errorf("ollama ps: %w", err)
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// IsLoaded reports whether model is in memory.
func (c *Client) IsLoaded(ctx context.Context, model string) (bool, error) {
	names, err := c.Loaded(ctx)
	if err != nil {
		return false, err
	}
	return hasModel(names, model), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrUnreachable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Ollama tags carry ":latest" implicitly; "mistral" matches "mistral:latest".
func hasModel(names []string, model string) bool {
	for _, n := range names {
		if n == model || n == model+":latest" {
			return true
		}
	}
	return false
}

func boundedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, _defaultTimeout)
}

// GenerateOptions are the sampling parameters sent with /api/generate.
type GenerateOptions struct {
	Temperature float64
	NumPredict  int
}

type generateRequest struct {
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	System    string          `json:"system,omitempty"`
	Stream    bool            `json:"stream"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Options   generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// GenerateResult is the non-streaming /api/generate response.
type GenerateResult struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	TotalDuration   int64  `json:"total_duration"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Generate runs a single non-streaming completion. The model is kept loaded
// for ten minutes afterwards. Errors are *llm.Error values classified by kind.
func (c *Client) Generate(ctx context.Context, model, system, prompt string, opts *GenerateOptions) (*GenerateResult, error) {
	if opts == nil {
		opts = &GenerateOptions{}
	}
	payload, err := json.Marshal(generateRequest{
		Model:     model,
		Prompt:    prompt,
		System:    system,
		Stream:    false,
		KeepAlive: _keepAlive,
		Options:   generateOptions{Temperature: opts.Temperature, NumPredict: opts.NumPredict},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama generate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, model)
	}
	var out GenerateResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, c.transportError(ctx, err)
		}
		return nil, &llm.Error{Kind: llm.ErrMalformedResponse, Provider: ProviderName, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

// Warmup loads model into memory with a one-token generation so the first
// real request does not pay the load time.
func (c *Client) Warmup(ctx context.Context, model string, timeout time.Duration) error {
	ctx, cancel := llm.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.Generate(ctx, model, "", "hi", &GenerateOptions{NumPredict: 1})
	return err
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", ProviderName, ctx.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	classified := llm.Classify(context.Background(), ProviderName, err)
	var e *llm.Error
	if errors.As(classified, &e) {
		switch {
		case errors.Is(e.Kind, llm.ErrTimeout):
			e.Hint = "The model may still be loading. Raise CM_TIMEOUT or run: cm warmup"
		case llm.IsConnRefused(err):
			e.Hint = fmt.Sprintf("Is Ollama running at %s? Start it with: ollama serve", c.baseURL)
		default:
			e.Hint = fmt.Sprintf("Check OLLAMA_HOST (currently %s).", c.baseURL)
		}
	}
	return classified
}

func (c *Client) statusError(resp *http.Response, model string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, _maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	e := &llm.Error{Kind: llm.ErrRejected, Provider: ProviderName, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	switch {
	case resp.StatusCode == http.StatusNotFound || strings.Contains(strings.ToLower(msg), "not found"):
		e.Kind = llm.ErrModelNotFound
		e.Err = fmt.Errorf("model %q not found", model)
		e.Hint = "Run: ollama pull " + model
	case resp.StatusCode >= http.StatusInternalServerError:
		e.Hint = "Check the Ollama server log."
	}
	return e
}
