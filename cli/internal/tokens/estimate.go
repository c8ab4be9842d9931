// Package tokens estimates token counts from byte lengths. The chars/4
// heuristic is close enough for budget display and debug logging; no model
// tokenizer is involved.
package tokens

import "fmt"

// charsPerToken is the divisor for the byte-based estimator
// (roughly 4 bytes per token for typical English/code).
const charsPerToken = 4

// Estimate returns an estimated token count for s: (len(s)+3)/4, so 1–4
// bytes map to 1 token, 5–8 to 2, etc. Empty string returns 0.
func Estimate(s string) int {
	return FromBytes(len(s))
}

// FromBytes returns the estimated token count for n bytes. n <= 0 returns 0.
func FromBytes(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// Format renders an estimate for humans: "~850 tokens", "~12.3k tokens".
func Format(n int) string {
	if n < 1000 {
		return fmt.Sprintf("~%d tokens", n)
	}
	return fmt.Sprintf("~%.1fk tokens", float64(n)/1000)
}
