// Package sanitize removes model reasoning from generated text before it reaches users.
package sanitize

import "regexp"

// Reasoning block delimiters emitted by thinking models.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
)

// reasoningBlock matches the shortest <think>...</think> span, across lines, plus trailing whitespace.
var reasoningBlock = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(ThinkOpen) + `.*?` + regexp.QuoteMeta(ThinkClose) + `\s*`)

// StripReasoning returns text with its first reasoning block and the whitespace
// directly after it removed. Text without a complete block is returned unchanged.
func StripReasoning(text string) string {
	loc := reasoningBlock.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + text[loc[1]:]
}

// HasReasoning reports whether text contains a complete reasoning block.
func HasReasoning(text string) bool {
	return reasoningBlock.MatchString(text)
}
