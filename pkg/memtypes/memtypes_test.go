package memtypes

import (
	"testing"
	"time"
)

func TestNewMemoryDefaults(t *testing.T) {
	now := time.Now()
	m := NewMemory("paris is the capital of france", Fact, now)
	if m.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if m.Importance != Fact.DefaultImportance() {
		t.Fatalf("expected default importance %f, got %f", Fact.DefaultImportance(), m.Importance)
	}
	if m.Confidence.Score != 0.5 {
		t.Fatalf("expected neutral starting confidence, got %f", m.Confidence.Score)
	}
}

func TestWithImportanceClamps(t *testing.T) {
	m := NewMemory("x", Fact, time.Now())
	m.WithImportance(5.0)
	if m.Importance != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %f", m.Importance)
	}
	m.WithImportance(-5.0)
	if m.Importance != 0.0 {
		t.Fatalf("expected clamp to 0.0, got %f", m.Importance)
	}
}

func TestIsPermanent(t *testing.T) {
	now := time.Now()
	identity := NewMemory("my name is sam", Identity, now)
	if !identity.IsPermanent() {
		t.Fatal("expected identity memories to be permanent")
	}
	highImportance := NewMemory("critical fact", Fact, now).WithImportance(0.99)
	if !highImportance.IsPermanent() {
		t.Fatal("expected near-max importance to be permanent")
	}
	ordinary := NewMemory("a passing observation", Observation, now)
	if ordinary.IsPermanent() {
		t.Fatal("expected an ordinary observation not to be permanent")
	}
}

func TestRecordAccess(t *testing.T) {
	now := time.Now()
	m := NewMemory("x", Fact, now)
	later := now.Add(time.Hour)
	m.RecordAccess(later)
	if m.AccessCount != 1 {
		t.Fatalf("expected access count 1, got %d", m.AccessCount)
	}
	if !m.LastAccessedAt.Equal(later) {
		t.Fatalf("expected last accessed to update to %v, got %v", later, m.LastAccessedAt)
	}
}

func TestMemoryTypeCanDecay(t *testing.T) {
	if Identity.CanDecay() {
		t.Fatal("identity memories must never decay")
	}
	for _, typ := range AllMemoryTypes() {
		if typ == Identity {
			continue
		}
		if !typ.CanDecay() {
			t.Fatalf("expected %s to be decay-eligible", typ)
		}
	}
}

func TestRelationScoreMultiplierOrdering(t *testing.T) {
	if Updates.ScoreMultiplier() <= RelatedTo.ScoreMultiplier() {
		t.Fatal("expected updates to carry more weight than a plain relation")
	}
	if Contradicts.ScoreMultiplier() >= RelatedTo.ScoreMultiplier() {
		t.Fatal("expected contradicts to carry less weight than a plain relation")
	}
}

func TestNewAssociationDefaultWeight(t *testing.T) {
	a := NewAssociation("m1", "m2", RelatedTo, time.Now())
	if a.Weight != 0.5 {
		t.Fatalf("expected default weight 0.5, got %f", a.Weight)
	}
	a.WithWeight(2.0)
	if a.Weight != 1.0 {
		t.Fatalf("expected weight clamped to 1.0, got %f", a.Weight)
	}
}

func TestExperienceLifecycle(t *testing.T) {
	now := time.Now()
	exp := NewExperience("debugging session", "working on the flaky test", now)
	if !exp.IsOpen() {
		t.Fatal("expected a freshly created experience to be open")
	}
	exp.AddMemory("mem-1")
	exp.AddMemory("mem-1")
	exp.AddMemory("mem-2")
	if len(exp.MemoryIDs) != 2 {
		t.Fatalf("expected AddMemory to dedupe, got %v", exp.MemoryIDs)
	}
}

func TestWorkingMemoryItemExpired(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	item := WorkingMemoryItem{ExpiresAt: &future}
	if item.Expired(now) {
		t.Fatal("expected item not yet expired")
	}
	if !item.Expired(now.Add(2 * time.Minute)) {
		t.Fatal("expected item to be expired after its TTL")
	}
}

func TestConfidenceCorroborationIncreasesScore(t *testing.T) {
	now := time.Now()
	c := NewConfidence(now)
	before := c.Score
	c.Corroborate("source-a", now)
	if c.Score <= before {
		t.Fatalf("expected corroboration to raise score: before=%f after=%f", before, c.Score)
	}
}

func TestConfidenceContradictionLowersScoreAndFlags(t *testing.T) {
	now := time.Now()
	c := NewConfidence(now)
	c.Factors.ConsistencyScore = 1.0
	c.Recalculate(now)
	before := c.Score
	c.FlagContradiction("mem-2", now)
	if c.Score >= before {
		t.Fatalf("expected contradiction to lower score: before=%f after=%f", before, c.Score)
	}
	if c.Status != Contradicted {
		t.Fatalf("expected status Contradicted, got %s", c.Status)
	}
}

func TestConfidenceDecayReducesRetrievalStability(t *testing.T) {
	now := time.Now()
	c := NewConfidence(now)
	c.Factors.RetrievalStability = 1.0
	before := c.Factors.RetrievalStability
	c.Decay(30, now)
	if c.Factors.RetrievalStability >= before {
		t.Fatalf("expected a 30-day decay to roughly halve retrieval stability: before=%f after=%f",
			before, c.Factors.RetrievalStability)
	}
}

func TestConfidenceTierBuckets(t *testing.T) {
	cases := []struct {
		score float64
		tier  ConfidenceTier
	}{
		{0.95, TierHigh},
		{0.75, TierMedium},
		{0.5, TierLow},
		{0.1, TierUnreliable},
	}
	for _, tc := range cases {
		c := Confidence{Score: tc.score}
		if got := c.Tier(); got != tc.tier {
			t.Errorf("score %f: expected tier %s, got %s", tc.score, tc.tier, got)
		}
	}
}
