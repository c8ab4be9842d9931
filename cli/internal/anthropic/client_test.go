package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cm/cli/internal/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestNewClient_requiresKey(t *testing.T) {
	t.Parallel()
	_, err := NewClient(Options{APIKey: "  "})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)
	var e *llm.Error
	require.True(t, errors.As(err, &e))
	assert.Contains(t, e.Hint, "export ANTHROPIC_API_KEY")
}

func TestNewClient_defaults(t *testing.T) {
	t.Parallel()
	c, err := NewClient(Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, ProviderName, c.Name())
}

func TestClient_Generate(t *testing.T) {
	t.Parallel()
	var got messagesRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"type":"message","model":"claude-x","content":[{"type":"text","text":"feat: add "},{"type":"text","text":"picker"}],"usage":{"input_tokens":100,"output_tokens":7}}`))
	})

	resp, err := c.Generate(context.Background(), "the prompt", llm.GenerateOptions{System: "sys", Temperature: 0.4, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "feat: add picker", resp.Text)
	assert.Equal(t, "claude-x", resp.Model)
	assert.Equal(t, 107, resp.Usage.Total())

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.Equal(t, "sys", got.System)
	assert.InDelta(t, 0.4, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, message{Role: "user", Content: "the prompt"}, got.Messages[0])
}

func TestClient_Generate_sendsZeroTemperature(t *testing.T) {
	t.Parallel()
	var body []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		assert.NoError(t, err)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"fix: pin output"}]}`))
	})

	_, err := c.Generate(context.Background(), "p", llm.GenerateOptions{Temperature: 0, Timeout: time.Second})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"temperature":0`)
}

func TestClient_Generate_errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
		wantHint string
	}{
		{"401", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, llm.ErrRejected, "Check ANTHROPIC_API_KEY: export ANTHROPIC_API_KEY=sk-ant-..."},
		{"404", http.StatusNotFound, `{"type":"error","error":{"type":"not_found_error","message":"model: nope"}}`, llm.ErrModelNotFound, `Model "claude-sonnet-4-20250514" is not available; set --model or CM_MODEL.`},
		{"429", http.StatusTooManyRequests, `{}`, llm.ErrRejected, "Rate limited; wait and try again."},
		{"529", 529, `overloaded`, llm.ErrRejected, ""},
		{"empty_content", http.StatusOK, `{"type":"message","content":[]}`, llm.ErrMalformedResponse, ""},
		{"not_json", http.StatusOK, `<html>`, llm.ErrMalformedResponse, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Generate(context.Background(), "p", llm.GenerateOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.False(t, llm.Retryable(err))
			var e *llm.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.wantHint, e.Hint)
		})
	}
}

func TestClient_Generate_errorMessage(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	})
	_, err := c.Generate(context.Background(), "p", llm.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, "claude: request rejected (HTTP 400): invalid_request_error: max_tokens too large", err.Error())
}

func TestClient_Generate_timeout(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	_, err := c.Generate(context.Background(), "p", llm.GenerateOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTimeout)
	assert.True(t, llm.Retryable(err))
}
