package importance

import (
	"strings"
	"testing"
	"time"

	"github.com/kittclouds/memengine/pkg/memtypes"
)

func TestDynamicFreshlyAccessedOutscoresStale(t *testing.T) {
	now := time.Now()
	w := DefaultWeights()
	fresh := &memtypes.Memory{MemoryType: memtypes.Fact, Importance: 0.5, LastAccessedAt: now, Confidence: memtypes.Confidence{Score: 0.5}}
	stale := &memtypes.Memory{MemoryType: memtypes.Fact, Importance: 0.5, LastAccessedAt: now.Add(-500 * time.Hour), Confidence: memtypes.Confidence{Score: 0.5}}

	freshScore := Dynamic(fresh, w, now.Unix())
	staleScore := Dynamic(stale, w, now.Unix())
	if freshScore <= staleScore {
		t.Fatalf("expected freshly accessed memory to score higher: fresh=%f stale=%f", freshScore, staleScore)
	}
}

func TestDynamicIdentityGetsTypeBonus(t *testing.T) {
	now := time.Now()
	w := DefaultWeights()
	identity := &memtypes.Memory{MemoryType: memtypes.Identity, Importance: 0.5, LastAccessedAt: now}
	observation := &memtypes.Memory{MemoryType: memtypes.Observation, Importance: 0.5, LastAccessedAt: now}

	if Dynamic(identity, w, now.Unix()) <= Dynamic(observation, w, now.Unix()) {
		t.Fatal("expected identity's larger type bonus to outscore an observation")
	}
}

func TestDynamicClampedToUnitRange(t *testing.T) {
	now := time.Now()
	w := DefaultWeights()
	m := &memtypes.Memory{
		MemoryType:     memtypes.Identity,
		Importance:     1.0,
		LastAccessedAt: now,
		AccessCount:    1_000_000,
		Confidence:     memtypes.Confidence{Score: 1.0},
	}
	score := Dynamic(m, w, now.Unix())
	if score < 0 || score > 1 {
		t.Fatalf("expected score clamped to [0,1], got %f", score)
	}
}

func TestTokenRelevanceFullOverlap(t *testing.T) {
	r := TokenRelevance("dark mode editor", "the user wants dark mode in the editor")
	if r != 1.0 {
		t.Fatalf("expected full overlap to score 1.0, got %f", r)
	}
}

func TestTokenRelevanceNoOverlap(t *testing.T) {
	r := TokenRelevance("quarterly revenue", "bananas are a good source of potassium")
	if r != 0.0 {
		t.Fatalf("expected no overlap to score 0.0, got %f", r)
	}
}

func TestTokenRelevanceEmptyQuery(t *testing.T) {
	if r := TokenRelevance("", "some content"); r != 0 {
		t.Fatalf("expected empty query to score 0, got %f", r)
	}
}

func TestQueryRelevantBlendsRelevanceAndDynamic(t *testing.T) {
	now := time.Now()
	w := DefaultWeights()
	m := &memtypes.Memory{
		Content:        "the user prefers dark mode",
		MemoryType:     memtypes.Preference,
		Importance:     0.5,
		LastAccessedAt: now,
	}
	onlyDynamic := QueryRelevant(m, "unrelated text entirely", 0.0, w, now.Unix())
	onlyRelevance := QueryRelevant(m, "dark mode", 1.0, w, now.Unix())
	if onlyRelevance <= onlyDynamic {
		t.Fatalf("expected full relevance weighting on a matching query to score higher than dynamic-only: relevance=%f dynamic=%f",
			onlyRelevance, onlyDynamic)
	}
}

func TestBuildContextRespectsBudget(t *testing.T) {
	items := []memtypes.WorkingMemoryItem{
		{MemoryID: "a", ContentSnapshot: "short item", Attention: 0.9},
	}
	out := BuildContext(items, "", nil, 5)
	if estimateTokens(out) > 5 && out != "" {
		// A budget this small may legitimately produce an empty string;
		// only fail if it overshoots and is non-empty.
		t.Fatalf("expected output within a tiny token budget, got %q", out)
	}
}

func TestBuildContextOrdersPinnedBeforeUnpinnedBeforeEpisodeBeforeMemories(t *testing.T) {
	items := []memtypes.WorkingMemoryItem{
		{MemoryID: "unpinned", ContentSnapshot: "an active item", Attention: 0.8},
		{MemoryID: "pinned", ContentSnapshot: "a pinned item", Attention: 0.5, Pinned: true},
	}
	top := []memtypes.Memory{{ID: "m1", Content: "a top memory"}}

	out := BuildContext(items, "current episode summary", top, 2000)

	pinnedIdx := strings.Index(out, "a pinned item")
	unpinnedIdx := strings.Index(out, "an active item")
	episodeIdx := strings.Index(out, "current episode summary")
	memoryIdx := strings.Index(out, "a top memory")

	if pinnedIdx == -1 || unpinnedIdx == -1 || episodeIdx == -1 || memoryIdx == -1 {
		t.Fatalf("expected every layer to appear in the output: %q", out)
	}
	if !(pinnedIdx < unpinnedIdx && unpinnedIdx < episodeIdx && episodeIdx < memoryIdx) {
		t.Fatalf("expected ordering pinned < unpinned < episode < memories, got %q", out)
	}
}

func TestBuildContextEmptyInputsProduceEmptyString(t *testing.T) {
	out := BuildContext(nil, "", nil, 2000)
	if out != "" {
		t.Fatalf("expected empty output for no content, got %q", out)
	}
}
