package commit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	t.Parallel()
	got, err := ParseType(" FEAT ")
	require.NoError(t, err)
	assert.Equal(t, Feat, got)

	_, err = ParseType("feature")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feat, fix, refactor")
}

func TestTypeNames_order(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		[]string{"feat", "fix", "refactor", "chore", "docs", "test", "style", "perf", "ci", "build"},
		TypeNames())
}

func TestParseStyle(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]MessageStyle{
		"conventional": Conventional,
		"Simple":       Simple,
		" detailed":    Detailed,
	} {
		got, err := ParseStyle(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStyle("fancy")
	assert.Error(t, err)
	assert.False(t, Simple.Typed())
	assert.True(t, Detailed.Typed())
}

func TestMessage_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"subject_only", Message{Subject: "feat: add login"}, "feat: add login"},
		{
			"with_bullets",
			Message{Subject: "fix: handle nil", Bullets: []string{"Guard map access", "Add test"}},
			"fix: handle nil\n\n- Guard map access\n- Add test",
		},
		{
			"with_trailer",
			Message{Subject: "docs: fix typo", Trailer: "Refs: PROJ-1"},
			"docs: fix typo\n\nRefs: PROJ-1",
		},
		{
			"all",
			Message{Subject: "feat: x", Bullets: []string{"a"}, Trailer: "Closes: AB-2"},
			"feat: x\n\n- a\n\nCloses: AB-2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.msg.String())
		})
	}
}

func TestMessage_Body(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", Message{Subject: "feat: x"}.Body())
	assert.Equal(t, "- a\n\nRefs: X-1", Message{Subject: "feat: x", Bullets: []string{"a"}, Trailer: "Refs: X-1"}.Body())
}
