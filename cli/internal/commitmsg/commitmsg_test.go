package commitmsg

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cm/cli/internal/commit"
	"cm/cli/internal/diff"
	"cm/cli/internal/llm"
	"cm/cli/internal/prompt"
)

// scriptedProvider answers call i (zero-based, in call order) with replies[i].
type scriptedProvider struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
	opts    []llm.GenerateOptions
	calls   atomic.Int32
}

type reply struct {
	text string
	err  error
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Generate(ctx context.Context, p string, opts llm.GenerateOptions) (*llm.Response, error) {
	i := int(s.calls.Add(1)) - 1
	s.mu.Lock()
	s.prompts = append(s.prompts, p)
	s.opts = append(s.opts, opts)
	s.mu.Unlock()
	r := s.replies[i%len(s.replies)]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Response{Text: r.text, Model: "m1", Usage: &llm.Usage{InputTokens: 10, OutputTokens: 2}}, nil
}

func request(n int) prompt.Request {
	changes := []diff.FileChange{{Path: "cli/app.go", Added: 1, Removed: 1, Hunks: []string{"@@ -1 +1 @@\n-a\n+b"}}}
	ctx, err := diff.Process(changes, 1000, nil)
	if err != nil {
		panic(err)
	}
	return prompt.Request{
		Context:          ctx,
		Style:            commit.Conventional,
		IncludeBody:      true,
		MaxSubjectLength: 72,
		OptionCount:      n,
		TicketPrefix:     "Refs",
	}
}

func TestSuggest_single(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{replies: []reply{{text: "```\nfeat(cli): add picker\n\n- Use bubbles list\n```"}}}
	got, err := Suggest(context.Background(), p, request(1), Options{Model: "m1", Timeout: time.Minute, Temperature: 0.4})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "feat(cli): add picker", got[0].Message.Subject)
	assert.Equal(t, []string{"Use bubbles list"}, got[0].Message.Bullets)
	assert.Equal(t, "scripted", got[0].Provider)
	assert.Equal(t, "m1", got[0].Model)
	assert.Equal(t, 12, got[0].Usage.Total())

	require.Len(t, p.opts, 1)
	assert.Equal(t, prompt.SystemPrompt, p.opts[0].System)
	assert.Equal(t, time.Minute, p.opts[0].Timeout)
	assert.NotContains(t, p.prompts[0], "alternative")
}

func TestSuggest_multipleInOrder(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{replies: []reply{{text: "feat: one"}, {text: "feat: two"}, {text: "feat: three"}}}
	got, err := Suggest(context.Background(), p, request(3), Options{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range []string{"feat: one", "feat: two", "feat: three"} {
		assert.Equal(t, want, got[i].Message.Subject)
	}
	for i, pr := range p.prompts {
		assert.Contains(t, pr, "alternative "+string(rune('1'+i))+" of 3")
	}
}

func TestSuggest_allOrNothing(t *testing.T) {
	t.Parallel()
	failure := &llm.Error{Kind: llm.ErrRejected, Provider: "scripted", StatusCode: 500}
	p := &scriptedProvider{replies: []reply{{text: "feat: one"}, {err: failure}, {text: "feat: three"}}}
	got, err := Suggest(context.Background(), p, request(3), Options{})
	require.Error(t, err)
	assert.Nil(t, got, "no partial result")
	assert.ErrorIs(t, err, llm.ErrRejected)
	assert.True(t, strings.HasPrefix(err.Error(), "option 2 of 3: "), err.Error())
	assert.EqualValues(t, 2, p.calls.Load(), "sequential generation stops at the first failure")
}

func TestSuggest_allOrNothingParallel(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{replies: []reply{{text: "feat: one"}, {text: "not parsable\n"}, {text: "feat: three"}}}
	p.replies[1] = reply{text: "```\n```"}
	got, err := Suggest(context.Background(), p, request(3), Options{Concurrency: 3})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
	var e *llm.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "scripted", e.Provider)
}

func TestSuggest_clampsOptionCount(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{replies: []reply{{text: "fix: x"}}}
	got, err := Suggest(context.Background(), p, request(9), Options{Concurrency: 2})
	require.NoError(t, err)
	assert.Len(t, got, MaxOptions)
	assert.Equal(t, 1, ClampOptions(0))
	assert.Equal(t, 3, ClampOptions(3))
}

func TestSuggest_singleErrorUnwrapped(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{replies: []reply{{err: &llm.Error{Kind: llm.ErrTimeout}}}}
	_, err := Suggest(context.Background(), p, request(1), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTimeout)
	assert.NotContains(t, err.Error(), "option 1 of 1")
}

func TestSuggest_badInput(t *testing.T) {
	t.Parallel()
	_, err := Suggest(context.Background(), nil, request(1), Options{})
	assert.Error(t, err)
	_, err = Suggest(context.Background(), &scriptedProvider{}, prompt.Request{}, Options{})
	assert.Error(t, err)
}
