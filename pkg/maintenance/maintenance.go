package maintenance

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kittclouds/memengine/internal/store"
	"github.com/kittclouds/memengine/pkg/memtypes"
)

// EmbedFunc embeds text for the merge pass's similarity comparisons.
type EmbedFunc func(text string) ([]float32, error)

// Runner executes maintenance passes against a graph store.
type Runner struct {
	store *store.GraphStore
	embed EmbedFunc
}

// NewRunner wires a Runner against store. embed may be nil, in which
// case the merge pass (which needs embedding similarity) reports zero
// merges rather than failing the whole run.
func NewRunner(s *store.GraphStore, embed EmbedFunc) *Runner {
	return &Runner{store: s, embed: embed}
}

// Run executes whichever passes cfg enables, in order: decay, prune,
// merge, consolidate. Individual candidate failures are recorded in the
// report rather than aborting the run.
func (r *Runner) Run(cfg Config, now time.Time) (Report, error) {
	var report Report

	if cfg.EnableDecay {
		n, err := r.decay(cfg, now, &report)
		if err != nil {
			return report, err
		}
		report.Decayed = n
	}

	if cfg.EnablePruning {
		n, err := r.prune(cfg, now, &report)
		if err != nil {
			return report, err
		}
		report.Pruned = n
	}

	if cfg.EnableMerging {
		n, err := r.merge(cfg, &report)
		if err != nil {
			return report, err
		}
		report.Merged = n
	}

	if cfg.EnableConsolidation {
		n, err := r.consolidate(cfg, now, &report)
		if err != nil {
			return report, err
		}
		report.Consolidated = n
	}

	return report, nil
}

// decay reduces importance for memory types that can decay, scaled by
// age and access recency. Persist only if the change exceeds 0.01.
func (r *Runner) decay(cfg Config, now time.Time, report *Report) (int, error) {
	decayed := 0
	for _, mt := range memtypes.AllMemoryTypes() {
		if !mt.CanDecay() {
			continue
		}
		memories, err := r.store.GetByType(mt, 1000)
		if err != nil {
			return decayed, err
		}
		for _, m := range memories {
			report.Checked++
			daysOld := now.Sub(m.UpdatedAt).Hours() / 24
			daysSinceAccess := now.Sub(m.LastAccessedAt).Hours() / 24

			ageDecay := 1.0 - math.Min(0.5, daysOld*cfg.DecayRate)
			accessBoost := 1.0
			switch {
			case daysSinceAccess < 7:
				accessBoost = 1.1
			case daysSinceAccess > 30:
				accessBoost = 0.9
			}

			newImportance := m.Importance * ageDecay * accessBoost
			if math.Abs(newImportance-m.Importance) <= 0.01 {
				continue
			}
			m.Importance = clamp01(newImportance)
			m.UpdatedAt = now
			if err := r.store.Save(m); err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("decay %s: %v", m.ID, err))
				continue
			}
			decayed++
		}
	}
	return decayed, nil
}

// prune soft-deletes non-Identity, low-importance, sufficiently-old
// memories.
func (r *Runner) prune(cfg Config, now time.Time, report *Report) (int, error) {
	candidates, err := r.store.GetPruningCandidates(cfg.PruneThreshold, cfg.MinAgeDays, now)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, m := range candidates {
		report.Checked++
		if err := r.store.Forget(m.ID); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("prune %s: %v", m.ID, err))
			continue
		}
		pruned++
	}
	return pruned, nil
}

// consolidate groups old, low-importance memories by type and folds
// each group of >= 2 into a single summary memory, soft-deleting the
// originals.
func (r *Runner) consolidate(cfg Config, now time.Time, report *Report) (int, error) {
	cutoff := now.AddDate(0, 0, -cfg.ConsolidationAgeDays)
	threshold := cfg.ConsolidationThreshold
	candidates, err := r.store.QueryWithFilter(store.Filter{
		MaxImportance: &threshold,
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return 0, err
	}

	byType := make(map[memtypes.MemoryType][]*memtypes.Memory)
	for _, m := range candidates {
		if m.Importance >= threshold {
			continue
		}
		byType[m.MemoryType] = append(byType[m.MemoryType], m)
	}

	consolidated := 0
	for mt, group := range byType {
		report.Checked += len(group)
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })

		seen := make(map[string]bool, len(group))
		var lines []string
		var ids []string
		for _, m := range group {
			text := strings.TrimSpace(m.Content)
			if text == "" || seen[text] {
				continue
			}
			seen[text] = true
			lines = append(lines, text)
			ids = append(ids, m.ID)
		}
		if len(ids) < 2 {
			continue
		}

		summaryMem := memtypes.NewMemory(strings.Join(lines, "\n"), memtypes.Summary, now).
			WithImportance(0.5).
			WithMetadata(map[string]any{"original_memory_ids": ids})
		if err := r.store.Save(summaryMem); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("consolidate %s group: %v", mt, err))
			continue
		}
		summary := memtypes.NewMemorySummary(summaryMem.Content, ids, mt, now)
		summary.ID = summaryMem.ID
		if err := r.store.SaveSummary(summary); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("consolidate %s summary: %v", mt, err))
			continue
		}

		for _, id := range ids {
			if err := r.store.Forget(id); err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("consolidate forget %s: %v", id, err))
				continue
			}
		}
		consolidated += len(ids)
	}
	return consolidated, nil
}

// merge finds near-duplicate memories of the same type whose
// embeddings exceed the similarity threshold, keeps the
// higher-importance memory of each pair, rewrites associations
// pointing at the loser to the survivor, and soft-deletes the loser.
func (r *Runner) merge(cfg Config, report *Report) (int, error) {
	if r.embed == nil {
		return 0, nil
	}

	byType := make(map[memtypes.MemoryType][]*memtypes.Memory)
	for _, mt := range memtypes.AllMemoryTypes() {
		if mt == memtypes.Identity {
			continue
		}
		memories, err := r.store.GetByType(mt, 1000)
		if err != nil {
			return 0, err
		}
		byType[mt] = memories
	}

	merged := 0
	mergedAway := make(map[string]bool)

	for _, group := range byType {
		report.Checked += len(group)
		vectors := make(map[string][]float32, len(group))
		for _, m := range group {
			vec, err := r.embed(m.Content)
			if err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("merge embed %s: %v", m.ID, err))
				continue
			}
			vectors[m.ID] = vec
		}

		for i := 0; i < len(group); i++ {
			a := group[i]
			if mergedAway[a.ID] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				b := group[j]
				if mergedAway[b.ID] {
					continue
				}
				va, okA := vectors[a.ID]
				vb, okB := vectors[b.ID]
				if !okA || !okB {
					continue
				}
				sim := cosine(va, vb)
				if sim < cfg.MergeSimilarityThreshold {
					continue
				}

				survivor, loser := a, b
				if b.Importance > a.Importance {
					survivor, loser = b, a
				}
				if err := r.rewriteAssociations(loser.ID, survivor.ID); err != nil {
					report.Failures = append(report.Failures, fmt.Sprintf("merge rewrite %s->%s: %v", loser.ID, survivor.ID, err))
					continue
				}
				if err := r.store.Forget(loser.ID); err != nil {
					report.Failures = append(report.Failures, fmt.Sprintf("merge forget %s: %v", loser.ID, err))
					continue
				}
				mergedAway[loser.ID] = true
				merged++
			}
		}
	}
	return merged, nil
}

func (r *Runner) rewriteAssociations(fromID, toID string) error {
	edges, err := r.store.GetAssociations(fromID)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := r.store.RewriteAssociationEndpoint(e.ID, fromID, toID); err != nil {
			return err
		}
	}
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
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
