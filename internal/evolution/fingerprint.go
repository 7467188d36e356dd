package evolution

import (
	"strings"
	"unicode"
)

// Fingerprinter reduces free text to a stable detection key. Two texts
// describing the same recurring behavior should map to the same key, so
// detectors can count recurrences across sessions without a similarity
// model. Implementations must be deterministic: the same input always
// yields the same key.
type Fingerprinter interface {
	Fingerprint(text string) string
}

// TokenFingerprinter is the reference Fingerprinter: lowercase the text,
// strip everything but letters and digits, drop short and stop tokens, and
// join the first significant tokens with hyphens. It catches verbatim and
// lightly-reworded recurrences; anything smarter plugs in behind the
// interface.
type TokenFingerprinter struct {
	// MaxTokens bounds the key length. Zero means the default of 6.
	MaxTokens int
}

var _ Fingerprinter = (*TokenFingerprinter)(nil)

// stopTokens are connective words that carry no detection signal.
var stopTokens = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "was": true, "were": true,
	"are": true, "should": true, "would": true, "could": true, "have": true,
	"has": true, "had": true, "when": true, "then": true, "than": true,
	"its": true, "not": true, "use": true, "using": true, "all": true,
}

// Fingerprint implements Fingerprinter.
func (f *TokenFingerprinter) Fingerprint(text string) string {
	maxTokens := f.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 6
	}

	normalized := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, text)

	var tokens []string
	for _, tok := range strings.Fields(normalized) {
		if len(tok) < 3 || stopTokens[tok] {
			continue
		}
		tokens = append(tokens, tok)
		if len(tokens) == maxTokens {
			break
		}
	}
	return strings.Join(tokens, "-")
}
