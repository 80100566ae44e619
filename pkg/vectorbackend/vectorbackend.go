// Package vectorbackend provides a small vector-storage capability
// set and two implementations (SPEC_FULL.md §4.E): a brute-force file
// backend for small corpora, and an ANN backend layered over the
// teacher's embedded sqlite-vec extension.
package vectorbackend

import (
	"math"
	"sort"

	"github.com/kittclouds/memengine/internal/errs"
)

// Match is one search hit, higher Score is better.
type Match struct {
	ID      string
	Score   float64
	Payload string
}

// Backend is the capability set every vector store implements.
type Backend interface {
	Name() string
	Dimension() int
	Upsert(id string, vec []float32, payload string) error
	Delete(id string) error
	Search(vec []float32, k int) ([]Match, error)
}

func checkDimension(want, got int) error {
	if want != got {
		return errs.VectorDB(nil, "dimension mismatch: backend expects %d, got %d", want, got)
	}
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func topK(matches []Match, k int) []Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
