package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prompt string
		want   int
	}{
		{"empty", "", 0},
		{"one_char", "x", 1},
		{"four_chars", "abcd", 1},
		{"five_chars", "abcde", 2},
		{"eight_chars", "abcdefgh", 2},
		{"multibyte", "é", 1},
		{"long", strings.Repeat("a", 12000), 3000},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Estimate(tt.prompt); got != tt.want {
				t.Errorf("Estimate(%d bytes) = %d, want %d", len(tt.prompt), got, tt.want)
			}
		})
	}
}

func TestFromBytes_nonPositive(t *testing.T) {
	t.Parallel()
	if got := FromBytes(-5); got != 0 {
		t.Errorf("FromBytes(-5) = %d, want 0", got)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n    int
		want string
	}{
		{0, "~0 tokens"},
		{850, "~850 tokens"},
		{1000, "~1.0k tokens"},
		{12345, "~12.3k tokens"},
	}
	for _, tt := range tests {
		if got := Format(tt.n); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
