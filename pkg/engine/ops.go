package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kittclouds/memengine/internal/errs"
	"github.com/kittclouds/memengine/internal/store"
	"github.com/kittclouds/memengine/pkg/ftsindex"
	"github.com/kittclouds/memengine/pkg/importance"
	"github.com/kittclouds/memengine/pkg/maintenance"
	"github.com/kittclouds/memengine/pkg/memtypes"
	"github.com/kittclouds/memengine/pkg/retrieval"
)

func isNotFound(err error) bool { return errs.Is(err, errs.KindNotFound) }

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Remember persists m and propagates it to every downstream index:
// the durable store, the full-text index, the vector backend, the
// working-memory active set, and (if one is open) the current
// episode, in that order. Only the first write's failure aborts the
// call; failures in the later, best-effort propagation steps are
// logged and joined into the returned error, but m remains saved —
// nothing is rolled back (SPEC_FULL.md §5).
func (e *Engine) Remember(ctx context.Context, m *memtypes.Memory) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := e.store.Save(m); err != nil {
		return err
	}

	var propagationErrs []error

	if err := e.fts.IndexDoc(ftsindex.Doc{
		ID:         m.ID,
		Content:    m.Content,
		MemoryType: m.MemoryType,
		Source:     m.Source,
		Tags:       tagsOf(m),
		Importance: m.Importance,
	}); err != nil {
		e.logger.Error("index memory in full-text index", "memory_id", m.ID, "error", err)
		propagationErrs = append(propagationErrs, err)
	}

	vec := e.embed.EmbedQuery(m.Content)
	if err := e.vec.Upsert(m.ID, vec, string(m.MemoryType)); err != nil {
		e.logger.Error("upsert memory into vector backend", "memory_id", m.ID, "error", err)
		propagationErrs = append(propagationErrs, err)
	}

	now := time.Now()
	e.working.Remember(m, defaultWorkingMemoryTTL, now)
	if err := e.episodes.LinkMemory(m.ID, now); err != nil {
		e.logger.Error("link memory to current episode", "memory_id", m.ID, "error", err)
		propagationErrs = append(propagationErrs, err)
	}

	return errors.Join(propagationErrs...)
}

// tagsOf extracts a "tags" metadata field as a string slice, tolerant
// of both []string and the []any shape JSON round-tripping produces.
func tagsOf(m *memtypes.Memory) []string {
	raw, ok := m.Metadata["tags"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Recall runs a hybrid BM25 + dense vector + graph-neighborhood search
// over the live (non-forgotten) memory graph. A nil cfg uses the
// engine's configured default weights.
func (e *Engine) Recall(ctx context.Context, query string, filterType *memtypes.MemoryType, cfg *retrieval.Config) ([]retrieval.Result, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	rcfg := e.hybridWeights
	if cfg != nil {
		rcfg = *cfg
	}

	var ftsType *memtypes.MemoryType
	if filterType != nil {
		ftsType = filterType
	}
	ftsHits, err := e.fts.Search(query, ftsindex.SearchConfig{
		MemoryType: ftsType,
		MaxResults: rcfg.BM25Limit,
	})
	if err != nil {
		e.logger.Warn("full-text search failed, falling back to vector/graph signals only", "error", err)
		ftsHits = nil
	}
	bm25Hits := make([]retrieval.BM25Hit, len(ftsHits))
	for i, h := range ftsHits {
		bm25Hits[i] = retrieval.BM25Hit{ID: h.ID, Score: h.Score}
	}

	vectorSearch := func(vec []float32, k int) ([]retrieval.VectorHit, error) {
		matches, err := e.vec.Search(vec, k)
		if err != nil {
			return nil, err
		}
		hits := make([]retrieval.VectorHit, len(matches))
		for i, m := range matches {
			hits[i] = retrieval.VectorHit{ID: m.ID, Score: m.Score}
		}
		return hits, nil
	}

	getNeighbors := func(seedID string, depth int) ([]retrieval.NeighborHit, error) {
		neighbors, err := e.store.GetNeighbors(seedID, depth, nil)
		if err != nil {
			return nil, err
		}
		out := make([]retrieval.NeighborHit, 0, len(neighbors))
		for _, n := range neighbors {
			if n.Association == nil {
				continue
			}
			out = append(out, retrieval.NeighborHit{
				MemoryID: n.MemoryID,
				Relation: memtypes.RelationType(n.Association.Relation),
			})
		}
		return out, nil
	}

	return retrieval.HybridRank(
		query,
		bm25Hits,
		e.embedQuery,
		vectorSearch,
		e.loadMemoryOrNil,
		getNeighbors,
		rcfg,
		filterType,
		time.Now().Unix(),
	)
}

func (e *Engine) embedQuery(text string) ([]float32, error) {
	return e.embed.EmbedQuery(text), nil
}

// ThinkAbout is Recall plus the bookkeeping a caller would otherwise
// have to repeat for every surfaced memory: each result's access is
// recorded, it is refreshed into working memory, and it is linked to
// the current episode if one is open.
func (e *Engine) ThinkAbout(ctx context.Context, query string, filterType *memtypes.MemoryType) ([]retrieval.Result, error) {
	results, err := e.Recall(ctx, query, filterType, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range results {
		m := &results[i].Memory
		if err := e.store.RecordAccess(m.ID, now); err != nil {
			e.logger.Warn("record access for recalled memory", "memory_id", m.ID, "error", err)
			continue
		}
		m.RecordAccess(now)
		e.working.Remember(m, defaultWorkingMemoryTTL, now)
		if err := e.episodes.LinkMemory(m.ID, now); err != nil {
			e.logger.Warn("link recalled memory to current episode", "memory_id", m.ID, "error", err)
		}
	}
	return results, nil
}

// Forget soft-deletes a memory: hidden from recall, evicted from
// working memory, retained in the store (and its full-text/vector
// index rows, which Recall's forgotten-flag check already excludes)
// for Restore to bring back.
func (e *Engine) Forget(ctx context.Context, id string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := e.store.Forget(id); err != nil {
		return err
	}
	e.working.Remove(id)
	return nil
}

// Restore reinstates a previously forgotten memory.
func (e *Engine) Restore(ctx context.Context, id string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return e.store.Restore(id)
}

// Associate creates or re-weights a typed edge between two memories.
func (e *Engine) Associate(ctx context.Context, sourceID, targetID string, relation memtypes.RelationType, weight float64) (*memtypes.Association, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	a := memtypes.NewAssociation(sourceID, targetID, relation, time.Now()).WithWeight(weight)
	if err := e.store.CreateAssociation(a); err != nil {
		return nil, err
	}
	return a, nil
}

// StartEpisode opens a new episode, implicitly closing whatever
// episode was already open.
func (e *Engine) StartEpisode(ctx context.Context, title, episodeContext string) (*memtypes.Experience, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return e.episodes.StartEpisode(title, episodeContext, time.Now())
}

// EndEpisode closes the current episode, if one is open.
func (e *Engine) EndEpisode(ctx context.Context) (*memtypes.Experience, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return e.episodes.EndEpisode(time.Now())
}

// RunMaintenance executes the configured decay/prune/merge/consolidate
// passes and logs a summary at the boundary.
func (e *Engine) RunMaintenance(ctx context.Context, cfg maintenance.Config) (maintenance.Report, error) {
	if err := checkCtx(ctx); err != nil {
		return maintenance.Report{}, err
	}
	report, err := e.maint.Run(cfg, time.Now())
	if err != nil {
		e.logger.Error("maintenance run failed", "error", err)
		return report, err
	}
	e.logger.Info("maintenance run complete",
		"checked", report.Checked,
		"decayed", report.Decayed,
		"pruned", report.Pruned,
		"merged", report.Merged,
		"consolidated", report.Consolidated,
		"failures", len(report.Failures),
	)
	return report, nil
}

// BuildContext assembles a token-budgeted context string from working
// memory, the current episode, and the topN highest dynamic-importance
// memories in the store.
func (e *Engine) BuildContext(ctx context.Context, topN int) (string, error) {
	if err := checkCtx(ctx); err != nil {
		return "", err
	}
	now := time.Now()
	workingItems := e.working.GetContext(now)

	var episodeSummary string
	if cur := e.episodes.Current(); cur != nil {
		episodeSummary = cur.Title
		if cur.Context != "" {
			episodeSummary += ": " + cur.Context
		}
	}

	topPtrs, err := e.store.QueryWithFilter(store.Filter{})
	if err != nil {
		return "", err
	}
	nowUnix := now.Unix()
	sort.SliceStable(topPtrs, func(i, j int) bool {
		return importance.Dynamic(topPtrs[i], e.importWeights, nowUnix) > importance.Dynamic(topPtrs[j], e.importWeights, nowUnix)
	})
	if topN >= 0 && len(topPtrs) > topN {
		topPtrs = topPtrs[:topN]
	}
	topMemories := make([]memtypes.Memory, len(topPtrs))
	for i, m := range topPtrs {
		topMemories[i] = *m
	}

	return importance.BuildContext(workingItems, episodeSummary, topMemories, e.contextBudget), nil
}
