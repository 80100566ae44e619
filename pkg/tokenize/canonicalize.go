// Package tokenize provides the canonicalization, tokenization and
// stop-word filtering shared by the full-text index, the embedding
// provider, dynamic importance's query-relevance scoring and the
// evaluation harness's keyword-relevance mode, so all four agree on
// what a "token" is (SPEC_FULL.md §4.L).
package tokenize

import (
	"strings"
	"unicode"
)

// isJoiner reports punctuation that commonly appears inside names and
// terms and so is preserved rather than treated as a separator.
// Examples: "O'Brien", "Jean-Luc", "AT&T".
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

func isSeparator(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || isJoiner(r) {
		return false
	}
	return true
}

// Canonicalize folds case, normalizes curly quotes/dashes, preserves
// in-word joiners, and collapses every other run of characters into a
// single space.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

// baseStopWords are filtered even when the richer ecosystem stop-word
// list is unavailable.
var baseStopWords = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"the": true, "of": true, "and": true, "a": true, "an": true,
	"to": true, "in": true, "on": true, "for": true, "at": true, "by": true,
	"is": true, "it": true, "as": true, "be": true, "was": true,
	"are": true, "been": true, "with": true, "from": true, "into": true,
	"that": true, "this": true, "has": true, "have": true, "had": true,
	"his": true, "her": true, "its": true, "their": true,
}

// IsStopWord reports whether word (already canonicalized) should be
// dropped from a token stream, unioning the curated set with the
// ecosystem English stop-word list.
func IsStopWord(word string) bool {
	if baseStopWords[word] {
		return true
	}
	return enStopwords.Contains(word)
}

// Tokens splits already-canonicalized text on whitespace.
func Tokens(canonical string) []string {
	return strings.Fields(canonical)
}

// Normalize canonicalizes, tokenizes and drops stop words in one
// step — the shared entry point used by C, D, I and K.
func Normalize(text string) []string {
	words := Tokens(Canonicalize(text))
	result := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 0 && !IsStopWord(w) {
			result = append(result, w)
		}
	}
	return result
}

// lightStem trims a small set of common English suffixes. This is
// deliberately crude ("lightly stemmed" per SPEC_FULL.md §4.D), not a
// full Porter stemmer — good enough to collapse plurals and common verb
// forms for token-bigram embedding features and BM25 recall.
func lightStem(tok string) string {
	for _, suf := range []string{"ing", "edly", "ed", "ies", "es", "s"} {
		if len(tok) > len(suf)+2 && strings.HasSuffix(tok, suf) {
			return tok[:len(tok)-len(suf)]
		}
	}
	return tok
}

// NormalizeStemmed is Normalize followed by light stemming, used by the
// embedding provider's token-bigram family.
func NormalizeStemmed(text string) []string {
	toks := Normalize(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = lightStem(t)
	}
	return out
}
