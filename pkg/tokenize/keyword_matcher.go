package tokenize

import "github.com/coregx/ahocorasick"

// KeywordMatcher compiles a fixed set of patterns into a single
// Aho-Corasick automaton for O(n) multi-pattern containment, grounded
// on the teacher's RuntimeDictionary (pkg/implicit-matcher) which used
// the same builder for entity-surface-form scanning. Here it backs the
// evaluation harness's keyword-relevance mode (SPEC_FULL.md §4.K) and
// is generally available to callers needing fast multi-term matching
// over memory content.
type KeywordMatcher struct {
	ac       *ahocorasick.Automaton
	patterns []string
}

// NewKeywordMatcher canonicalizes and compiles patterns. Patterns that
// are empty after canonicalization are dropped, and duplicates collapse
// to a single automaton entry.
func NewKeywordMatcher(patterns []string) (*KeywordMatcher, error) {
	seen := make(map[string]bool, len(patterns))
	uniq := make([]string, 0, len(patterns))
	for _, p := range patterns {
		key := Canonicalize(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, key)
	}

	km := &KeywordMatcher{patterns: uniq}
	if len(uniq) == 0 {
		return km, nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(uniq).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	km.ac = automaton
	return km, nil
}

// ContainsAny reports whether any compiled pattern occurs in text.
func (k *KeywordMatcher) ContainsAny(text string) bool {
	if k.ac == nil {
		return false
	}
	haystack := []byte(Canonicalize(text))
	return len(k.ac.FindAllOverlapping(haystack)) > 0
}

// MatchCount returns how many of the compiled patterns occur at least
// once in text (not total occurrence count), used to score
// keyword-containment recall against an expected keyword set.
func (k *KeywordMatcher) MatchCount(text string) int {
	if k.ac == nil {
		return 0
	}
	haystack := []byte(Canonicalize(text))
	matches := k.ac.FindAllOverlapping(haystack)
	seenIdx := make(map[int]bool, len(matches))
	for _, m := range matches {
		seenIdx[m.PatternID] = true
	}
	return len(seenIdx)
}

// PatternCount returns the number of distinct compiled patterns.
func (k *KeywordMatcher) PatternCount() int { return len(k.patterns) }
