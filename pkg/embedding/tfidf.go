package embedding

import (
	"math"
	"strings"

	"github.com/kittclouds/memengine/pkg/tokenize"
)

// CorpusStats holds inverse-document-frequency weights computed over
// a fixed document collection, used by the TF-IDF embedding variant.
type CorpusStats struct {
	idf       map[string]float32
	TotalDocs int
}

// BuildCorpusStats computes document frequency (tokens of length > 2,
// one count per document regardless of repetition) and converts it to
// IDF = max(1, ln(N/df)).
func BuildCorpusStats(docs []string) *CorpusStats {
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range longTokens(doc) {
			seen[tok] = true
		}
		for tok := range seen {
			docFreq[tok]++
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float32, len(docFreq))
	for term, df := range docFreq {
		v := math.Log(n / float64(df))
		if v < 1.0 {
			v = 1.0
		}
		idf[term] = float32(v)
	}
	return &CorpusStats{idf: idf, TotalDocs: len(docs)}
}

// IDF returns the term's inverse document frequency, defaulting to 1.0
// for terms not seen in the corpus.
func (c *CorpusStats) IDF(term string) float32 {
	if c == nil {
		return 1.0
	}
	if v, ok := c.idf[strings.ToLower(term)]; ok {
		return v
	}
	return 1.0
}

func longTokens(text string) []string {
	all := tokenize.Tokens(tokenize.Canonicalize(text))
	out := make([]string, 0, len(all))
	for _, t := range all {
		if len(t) > 2 {
			out = append(out, t)
		}
	}
	return out
}

// EmbedTFIDF reweights the token-bigram family (dims 256..351) by the
// corpus's IDF table; the character-gram and document-shape families
// are corpus-independent and pass through unchanged, matching the
// three-family layout of the plain hash embedding.
func (p *HashProvider) EmbedTFIDF(text string, stats *CorpusStats) []float32 {
	vec := make([]float32, Dimension)

	addCharGrams(vec, text)
	tokens := tokenize.NormalizeStemmed(text)
	idf := make(map[string]float32, len(tokens))
	for _, t := range tokens {
		idf[t] = stats.IDF(t)
	}
	addTokenBigrams(vec, tokens, idf)
	addShape(vec, text, tokens)

	l2Normalize(vec)
	return vec
}
