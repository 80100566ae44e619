package embedding

import (
	"math"
	"testing"
)

func TestEmbedQueryDeterministic(t *testing.T) {
	p := New()
	a := p.EmbedQuery("the quick brown fox")
	b := p.EmbedQuery("the quick brown fox")
	if len(a) != Dimension {
		t.Fatalf("expected dimension %d, got %d", Dimension, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at dim %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbedQueryIsL2Normalized(t *testing.T) {
	p := New()
	v := p.EmbedQuery("a memory about going to the store for bread and milk")
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-4 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestEmbedEmptyStringIsZeroVector(t *testing.T) {
	p := New()
	v := p.EmbedQuery("")
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector for empty input, dim %d = %f", i, x)
		}
	}
}

func TestSimilarTextsAreMoreSimilarThanUnrelated(t *testing.T) {
	p := New()
	a := p.EmbedQuery("the user prefers dark mode in the editor")
	b := p.EmbedQuery("the user likes dark mode for the editor")
	c := p.EmbedQuery("quarterly revenue grew by twelve percent")

	simAB, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("cosine: %v", err)
	}
	simAC, err := Cosine(a, c)
	if err != nil {
		t.Fatalf("cosine: %v", err)
	}
	if simAB <= simAC {
		t.Fatalf("expected related texts to score higher: sim(a,b)=%f sim(a,c)=%f", simAB, simAC)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestBuildCorpusStatsIDF(t *testing.T) {
	docs := []string{
		"the meeting is scheduled for tomorrow",
		"the meeting was rescheduled again",
		"bananas are a good source of potassium",
	}
	stats := BuildCorpusStats(docs)
	// "meeting" appears in 2/3 docs, "potassium" in 1/3: potassium should
	// carry a higher (or equal) IDF weight than a common term.
	if stats.IDF("potassium") < stats.IDF("meeting") {
		t.Fatalf("expected rarer term to have >= IDF: potassium=%f meeting=%f",
			stats.IDF("potassium"), stats.IDF("meeting"))
	}
}

func TestEmbedTFIDFDiffersFromPlainEmbed(t *testing.T) {
	p := New()
	docs := []string{"alpha beta gamma", "alpha beta delta", "completely unrelated text here"}
	stats := BuildCorpusStats(docs)

	plain := p.EmbedQuery("alpha beta gamma")
	weighted := p.EmbedTFIDF("alpha beta gamma", stats)

	same := true
	for i := range plain {
		if math.Abs(float64(plain[i]-weighted[i])) > 1e-6 {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected tf-idf reweighting to change the token-bigram region of the vector")
	}
}
