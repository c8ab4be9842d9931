package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(name string, available error, probes *[]string) Candidate {
	return Candidate{
		Name: name,
		Available: func(ctx context.Context) error {
			*probes = append(*probes, name)
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("probe without deadline")
			}
			return available
		},
		New:  func() (Provider, error) { return &fakeProvider{name: name}, nil },
		Hint: "enable " + name,
	}
}

func TestSelect_autoPrefersLocal(t *testing.T) {
	t.Parallel()
	var probes []string
	p, err := Select(context.Background(), "auto", []Candidate{
		candidate("ollama", nil, &probes),
		candidate("claude", nil, &probes),
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
	assert.Equal(t, []string{"ollama"}, probes)
}

func TestSelect_autoFallsBackToRemote(t *testing.T) {
	t.Parallel()
	var probes []string
	p, err := Select(context.Background(), "", []Candidate{
		candidate("ollama", errors.New("connection refused"), &probes),
		candidate("claude", nil, &probes),
	})
	require.NoError(t, err)
	assert.Equal(t, "claude", p.Name())
	assert.Equal(t, []string{"ollama", "claude"}, probes)
}

func TestSelect_autoNoneAvailable(t *testing.T) {
	t.Parallel()
	var probes []string
	_, err := Select(context.Background(), "AUTO", []Candidate{
		candidate("ollama", errors.New("refused"), &probes),
		candidate("claude", errors.New("ANTHROPIC_API_KEY not set"), &probes),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "enable ollama\nor: enable claude", e.Hint)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY not set")
}

func TestSelect_autoConstructorFailureTriesNext(t *testing.T) {
	t.Parallel()
	var probes []string
	broken := candidate("ollama", nil, &probes)
	broken.New = func() (Provider, error) { return nil, errors.New("bad host") }
	p, err := Select(context.Background(), "auto", []Candidate{broken, candidate("claude", nil, &probes)})
	require.NoError(t, err)
	assert.Equal(t, "claude", p.Name())
}

func TestSelect_explicitSkipsProbe(t *testing.T) {
	t.Parallel()
	var probes []string
	p, err := Select(context.Background(), "Claude", []Candidate{
		candidate("ollama", nil, &probes),
		candidate("claude", errors.New("would fail"), &probes),
	})
	require.NoError(t, err)
	assert.Equal(t, "claude", p.Name())
	assert.Empty(t, probes)
}

func TestSelect_explicitConstructorErrorSurfaces(t *testing.T) {
	t.Parallel()
	var probes []string
	c := candidate("claude", nil, &probes)
	want := errors.New("ANTHROPIC_API_KEY not set")
	c.New = func() (Provider, error) { return nil, want }
	_, err := Select(context.Background(), "claude", []Candidate{c})
	assert.ErrorIs(t, err, want)
}

func TestSelect_unknownName(t *testing.T) {
	t.Parallel()
	var probes []string
	_, err := Select(context.Background(), "gpt", []Candidate{candidate("ollama", nil, &probes)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "gpt"; use auto, ollama`)
}

func TestSelect_canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var probes []string
	_, err := Select(ctx, "auto", []Candidate{candidate("ollama", nil, &probes)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, probes)
}
