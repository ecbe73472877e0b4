// Package tokenizer provides the deterministic text-to-token scheme shared
// by indexing and querying.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize lowercases s (strings.ToLower, which folds ASCII letters and
// non-ASCII letters alike) and splits it on any maximal
// run of non-word characters (anything that is not a letter, digit, or
// underscore), discarding empty pieces. Whitespace is just one case of a
// non-word run, so it folds naturally without special-casing.
//
// The result is deterministic and side-effect free: the same input always
// produces the same token slice, and no package-level state is mutated.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}

	lower := strings.ToLower(s)

	tokens := make([]string, 0, 8)
	start := -1
	for i, r := range lower {
		if isWord(r) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			tokens = append(tokens, lower[start:i])
			start = -1
		}
	}
	if start != -1 {
		tokens = append(tokens, lower[start:])
	}
	return tokens
}

func isWord(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	default:
		// Extends word-ness to non-ASCII letters/digits so tokenization
		// degrades gracefully on non-English metadata; ASCII classification
		// above never reaches this branch, so it can't change ASCII behavior.
		return r > 127 && (unicode.IsLetter(r) || unicode.IsDigit(r))
	}
}
