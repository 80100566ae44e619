package tokenize

import "testing"

func TestCanonicalizeLowercasesAndCollapsesPunctuation(t *testing.T) {
	got := Canonicalize("Hello,   World!!  It's Jean-Luc.")
	want := "hello world it's jean-luc."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeNormalizesCurlyQuotesAndDashes(t *testing.T) {
	got := Canonicalize("O’Brien said—emphatically")
	if got != "o'brien said-emphatically" {
		t.Fatalf("unexpected canonicalization: %q", got)
	}
}

func TestTokensSplitsOnWhitespace(t *testing.T) {
	toks := Tokens("the quick brown fox")
	if len(toks) != 4 {
		t.Fatalf("expected 4 tokens, got %v", toks)
	}
}

func TestIsStopWord(t *testing.T) {
	if !IsStopWord("the") {
		t.Fatal("expected 'the' to be a stop word")
	}
	if IsStopWord("bananas") {
		t.Fatal("expected 'bananas' not to be a stop word")
	}
}

func TestNormalizeDropsStopWords(t *testing.T) {
	toks := Normalize("The user is going to the store")
	for _, tok := range toks {
		if tok == "the" || tok == "is" || tok == "to" {
			t.Fatalf("expected stop words removed, found %q in %v", tok, toks)
		}
	}
	if len(toks) == 0 {
		t.Fatal("expected some content tokens to survive")
	}
}

func TestNormalizeStemmedCollapsesPlurals(t *testing.T) {
	toks := NormalizeStemmed("the user likes bananas and apples")
	hasBanana := false
	for _, tok := range toks {
		if tok == "banana" {
			hasBanana = true
		}
	}
	if !hasBanana {
		t.Fatalf("expected 'bananas' to stem to 'banana', got %v", toks)
	}
}

func TestKeywordMatcherContainsAny(t *testing.T) {
	km, err := NewKeywordMatcher([]string{"dark mode", "preference"})
	if err != nil {
		t.Fatalf("NewKeywordMatcher: %v", err)
	}
	if !km.ContainsAny("the user wants dark mode enabled") {
		t.Fatal("expected a match on 'dark mode'")
	}
	if km.ContainsAny("completely unrelated text") {
		t.Fatal("expected no match on unrelated text")
	}
}

func TestKeywordMatcherEmptyPatternsNeverMatch(t *testing.T) {
	km, err := NewKeywordMatcher(nil)
	if err != nil {
		t.Fatalf("NewKeywordMatcher: %v", err)
	}
	if km.PatternCount() != 0 {
		t.Fatalf("expected zero compiled patterns, got %d", km.PatternCount())
	}
	if km.ContainsAny("anything at all") {
		t.Fatal("expected no match with zero compiled patterns")
	}
}

func TestKeywordMatcherDedupesCanonicalizedPatterns(t *testing.T) {
	km, err := NewKeywordMatcher([]string{"Dark Mode", "dark mode", "DARK MODE"})
	if err != nil {
		t.Fatalf("NewKeywordMatcher: %v", err)
	}
	if km.PatternCount() != 1 {
		t.Fatalf("expected duplicate patterns to collapse to 1, got %d", km.PatternCount())
	}
}
