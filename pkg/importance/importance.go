// Package importance computes a memory's dynamic importance score and
// builds token-budgeted context strings from working memory, the
// current episode, and top-ranked memories (SPEC_FULL.md §4.I).
package importance

import (
	"math"
	"strconv"
	"strings"

	"github.com/kittclouds/memengine/pkg/memtypes"
	"github.com/kittclouds/memengine/pkg/tokenize"
)

// Weights controls the dynamic-importance blend. The reference
// defaults: base 0.30 (applied to the memory's stored static
// importance), recency 0.20, freq 0.15, type bonus 0.15, confidence
// 0.10, with decay constant lambda 0.01.
type Weights struct {
	Base       float64
	Recency    float64
	Freq       float64
	TypeBonus  float64
	Confidence float64
	Lambda     float64
}

// DefaultWeights matches the reference configuration.
func DefaultWeights() Weights {
	return Weights{
		Base:       0.30,
		Recency:    0.20,
		Freq:       0.15,
		TypeBonus:  0.15,
		Confidence: 0.10,
		Lambda:     0.01,
	}
}

// Dynamic computes a memory's dynamic importance: a weighted blend of
// its stored static importance, access recency, access frequency, its
// type's fixed bonus, and its confidence score, clamped to [0,1].
func Dynamic(m *memtypes.Memory, w Weights, nowUnix int64) float64 {
	hoursSinceAccess := float64(nowUnix-m.LastAccessedAt.Unix()) / 3600.0
	if hoursSinceAccess < 0 {
		hoursSinceAccess = 0
	}
	recency := math.Exp(-w.Lambda * hoursSinceAccess)
	freq := math.Log(float64(m.AccessCount)+1) / 10.0
	typeBonus := m.MemoryType.TypeBonus()

	score := w.Base*clamp01(m.Importance) +
		w.Recency*recency +
		w.Freq*freq +
		w.TypeBonus*typeBonus +
		w.Confidence*m.Confidence.Score

	return clamp01(score)
}

// QueryRelevant blends token-overlap relevance to a query with dynamic
// importance: final = relevanceWeight*relevance + (1-relevanceWeight)*dynamic.
func QueryRelevant(m *memtypes.Memory, query string, relevanceWeight float64, w Weights, nowUnix int64) float64 {
	relevance := TokenRelevance(query, m.Content)
	dynamic := Dynamic(m, w, nowUnix)
	return relevanceWeight*relevance + (1-relevanceWeight)*dynamic
}

// TokenRelevance is the fraction of query tokens also present in
// content, using the shared canonicalizer so this agrees with BM25 and
// embedding tokenization.
func TokenRelevance(query, content string) float64 {
	queryTokens := tokenize.Tokens(tokenize.Canonicalize(query))
	if len(queryTokens) == 0 {
		return 0
	}
	contentSet := make(map[string]bool)
	for _, t := range tokenize.Tokens(tokenize.Canonicalize(content)) {
		contentSet[t] = true
	}
	var hits int
	seen := make(map[string]bool)
	for _, t := range queryTokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		if contentSet[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// charsPerToken estimates token count from character count, matching
// the reference's 0.75 tokens/char budget estimate.
const charsPerToken = 0.75

func estimateTokens(s string) int {
	return int(math.Ceil(float64(len([]rune(s))) * charsPerToken))
}

// BuildContext assembles a token-budgeted context string from pinned
// working-memory items, then other working items (annotated with
// attention), then the current episode's summary, then topMemories (in
// the order given; the engine passes the highest dynamic-importance
// memories first), in that order. Each layer is
// truncated line-by-line to remain within the budget; the "important
// memories" layer is reserved at least 100 tokens when any budget
// remains for it. The output never exceeds budgetTokens.
func BuildContext(
	workingItems []memtypes.WorkingMemoryItem,
	episodeSummary string,
	topMemories []memtypes.Memory,
	budgetTokens int,
) string {
	var b strings.Builder
	used := 0

	const minImportantReserve = 100
	leadingBudget := budgetTokens
	if len(topMemories) > 0 {
		leadingBudget = budgetTokens - minImportantReserve
	}

	writeLine := func(cap int, line string) bool {
		cost := estimateTokens(line) + 1 // +1 for the newline itself
		if used+cost > cap {
			return false
		}
		b.WriteString(line)
		b.WriteString("\n")
		used += cost
		return true
	}

	var pinned, unpinned []memtypes.WorkingMemoryItem
	for _, item := range workingItems {
		if item.Pinned {
			pinned = append(pinned, item)
		} else {
			unpinned = append(unpinned, item)
		}
	}

	for _, item := range pinned {
		if !writeLine(leadingBudget, "[pinned] "+item.ContentSnapshot) {
			return b.String()
		}
	}
	for _, item := range unpinned {
		line := "[active, attention=" + strconv.FormatFloat(item.Attention, 'f', 2, 64) + "] " + item.ContentSnapshot
		if !writeLine(leadingBudget, line) {
			return b.String()
		}
	}

	if episodeSummary != "" {
		if !writeLine(leadingBudget, "[current episode] "+episodeSummary) {
			return b.String()
		}
	}

	for _, m := range topMemories {
		line := "[memory] " + m.Content
		if !writeLine(budgetTokens, line) {
			break
		}
	}

	return b.String()
}

