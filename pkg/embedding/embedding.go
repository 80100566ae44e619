// Package embedding provides a deterministic, zero-config embedding
// provider (SPEC_FULL.md §4.D). It is intentionally lightweight: no
// network calls, no model downloads, no external weights. It is not
// intended to match the semantic quality of a learned embedding model,
// only to give the hybrid retriever a stable dense signal to fuse
// against the lexical and graph ones.
package embedding

import (
	"math"
	"strings"
	"unicode"

	"github.com/kittclouds/memengine/internal/errs"
	"github.com/kittclouds/memengine/pkg/tokenize"
)

// Dimension is the fixed output width. Three disjoint feature families
// share it: character 3-grams (0..255), token bigrams (256..351), and
// document-shape statistics (352..383).
const Dimension = 384

const (
	charGramDims  = 256
	tokenBigramLo = 256
	tokenBigramHi = 352
	shapeLo       = 352
)

// Provider embeds text into fixed-width vectors.
type Provider interface {
	Name() string
	Dimension() int
	Embed(texts []string) ([][]float32, error)
}

// HashProvider is the reference deterministic provider.
type HashProvider struct{}

// New returns the reference hash-based embedding provider.
func New() *HashProvider {
	return &HashProvider{}
}

func (p *HashProvider) Name() string      { return "hash384" }
func (p *HashProvider) Dimension() int    { return Dimension }

// Embed returns one vector per input text, in order.
func (p *HashProvider) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedOne(t)
	}
	return out, nil
}

// EmbedQuery is a convenience for the common single-text case.
func (p *HashProvider) EmbedQuery(text string) []float32 {
	return embedOne(text)
}

func embedOne(text string) []float32 {
	vec := make([]float32, Dimension)

	addCharGrams(vec, text)
	tokens := tokenize.NormalizeStemmed(text)
	addTokenBigrams(vec, tokens, nil)
	addShape(vec, text, tokens)

	l2Normalize(vec)
	return vec
}

// fnv1a64 matches the hashing the retrieved original implementation
// uses for bucket assignment, so ports of its fixtures hash to the
// same buckets here.
func fnv1a64(s string) uint64 {
	const offset = 1469598103934665603
	const prime = 1099511628211
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}

// addCharGrams folds overlapping 3-character runes (case-folded) into
// dims [0, charGramDims).
func addCharGrams(vec []float32, text string) {
	runes := []rune(strings.ToLower(text))
	if len(runes) < 3 {
		if len(runes) > 0 {
			idx := int(fnv1a64(string(runes)) % charGramDims)
			vec[idx] += 1.0
		}
		return
	}
	for i := 0; i+3 <= len(runes); i++ {
		gram := string(runes[i : i+3])
		idx := int(fnv1a64(gram) % charGramDims)
		vec[idx] += 1.0
	}
}

// addTokenBigrams folds adjacent normalized-token pairs into dims
// [tokenBigramLo, tokenBigramHi). When idf is non-nil each token's
// contribution is scaled by its corpus IDF weight (the TF-IDF
// variant); a nil idf leaves every token weighted 1.0.
func addTokenBigrams(vec []float32, tokens []string, idf map[string]float32) {
	width := tokenBigramHi - tokenBigramLo
	if len(tokens) == 0 {
		return
	}
	weight := func(tok string) float32 {
		if idf == nil {
			return 1.0
		}
		if w, ok := idf[tok]; ok {
			return w
		}
		return 1.0
	}
	if len(tokens) == 1 {
		idx := tokenBigramLo + int(fnv1a64(tokens[0])%uint64(width))
		vec[idx] += weight(tokens[0])
		return
	}
	for i := 0; i+1 < len(tokens); i++ {
		bigram := tokens[i] + "\x00" + tokens[i+1]
		idx := tokenBigramLo + int(fnv1a64(bigram)%uint64(width))
		vec[idx] += weight(tokens[i]) * weight(tokens[i+1])
	}
}

// addShape writes document-level statistics into dims [shapeLo, Dimension).
func addShape(vec []float32, text string, tokens []string) {
	if shapeLo >= Dimension {
		return
	}
	slots := Dimension - shapeLo
	stats := make([]float32, 0, slots)

	stats = append(stats, float32(len(tokens)))

	var totalLen int
	for _, t := range tokens {
		totalLen += len(t)
	}
	avgLen := float32(0)
	if len(tokens) > 0 {
		avgLen = float32(totalLen) / float32(len(tokens))
	}
	stats = append(stats, avgLen)

	var digits, upper, letters int
	var qMarks, bangs, colons, dots int
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsUpper(r):
			upper++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
		switch r {
		case '?':
			qMarks++
		case '!':
			bangs++
		case ':':
			colons++
		case '.':
			dots++
		}
	}
	total := float32(len([]rune(text)))
	digitRatio, upperRatio := float32(0), float32(0)
	if total > 0 {
		digitRatio = float32(digits) / total
	}
	if letters > 0 {
		upperRatio = float32(upper) / float32(letters)
	}
	stats = append(stats, digitRatio, upperRatio,
		float32(qMarks), float32(bangs), float32(colons), float32(dots))

	for i, v := range stats {
		if i >= slots {
			break
		}
		vec[shapeLo+i] += v
	}
}

func l2Normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

// Cosine returns the cosine similarity between two equal-length
// vectors, or an error if their lengths differ.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.Validationf("cosine: dimension mismatch %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
