// Package textnorm provides the text normalization used by every
// classifier in the pipeline. Two profiles exist: the strict form feeds
// phrase matching (guardrails, risk keywords), the loose form keeps basic
// punctuation for the stub router's intent detection.
package textnorm

import "strings"

// Normalize lowercases, replaces every non-alphanumeric rune with a space,
// and collapses whitespace. Curly apostrophes therefore vanish, which makes
// "I don’t understand" match the phrase "i dont understand".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == '\'', r == '’':
			// Dropped without a space boundary so "don't" folds to "dont".
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// NormalizeLoose lowercases and collapses whitespace but keeps the
// punctuation that carries signal for intent matching (?!.,-). Curly
// quotes are mapped to their ASCII equivalents first.
func NormalizeLoose(s string) string {
	replaced := quoteMapper.Replace(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(replaced))

	lastSpace := true
	for _, r := range replaced {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '?', r == '!', r == '.', r == ',', r == '-', r == '\'':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

var quoteMapper = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// ContainsAny reports whether the text contains any of the given phrases.
// Both sides are expected to be normalized already.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}
