package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kittclouds/memengine/internal/store"
	"github.com/kittclouds/memengine/pkg/embedding"
	"github.com/kittclouds/memengine/pkg/episodic"
	"github.com/kittclouds/memengine/pkg/ftsindex"
	"github.com/kittclouds/memengine/pkg/importance"
	"github.com/kittclouds/memengine/pkg/maintenance"
	"github.com/kittclouds/memengine/pkg/memtypes"
	"github.com/kittclouds/memengine/pkg/retrieval"
	"github.com/kittclouds/memengine/pkg/vectorbackend"
	"github.com/kittclouds/memengine/pkg/workingmemory"
)

// defaultWorkingMemoryTTL bounds how long a remembered or recalled
// memory stays in the active set without being refreshed again.
const defaultWorkingMemoryTTL = 30 * time.Minute

// Engine is the single entry point into the memory substrate: it owns
// the durable graph store, the full-text index, the embedding
// provider, a vector backend, the working-memory active set, the
// episodic manager, and the maintenance runner, and exposes the
// public operation surface over all of them (SPEC_FULL.md §4.M).
type Engine struct {
	store *store.GraphStore
	fts   *ftsindex.Index
	embed *embedding.HashProvider
	vec   vectorbackend.Backend

	working  *workingmemory.Set
	episodes *episodic.Manager
	maint    *maintenance.Runner

	hybridWeights retrieval.Config
	importWeights importance.Weights
	contextBudget int

	logger *slog.Logger
}

// New constructs an Engine from the given options, opening (or
// creating) its backing SQLite database and, for the ANN vector
// backend, its colocated vec0 virtual table.
func New(opts ...Option) (*Engine, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = DefaultConfig().Logger
	}

	gs, err := store.Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	fts, err := ftsindex.New(gs.DB())
	if err != nil {
		gs.Close()
		return nil, fmt.Errorf("open full-text index: %w", err)
	}

	embed := embedding.New()

	vec, err := newVectorBackend(gs, embed, cfg)
	if err != nil {
		gs.Close()
		return nil, fmt.Errorf("open vector backend: %w", err)
	}

	working := workingmemory.New(cfg.WorkingMemoryCapacity)
	importWeights := importance.DefaultWeights()

	e := &Engine{
		store:         gs,
		fts:           fts,
		embed:         embed,
		vec:           vec,
		working:       working,
		hybridWeights: cfg.HybridWeights,
		importWeights: importWeights,
		contextBudget: cfg.ContextBudgetTokens,
		logger:        cfg.Logger,
	}

	e.episodes = episodic.NewManager(gs, e.loadMemoryOrNil, e.dynamicImportance)
	e.maint = maintenance.NewRunner(gs, e.embedText)

	e.logger.Info("memory engine constructed",
		"dsn", cfg.DSN,
		"vector_backend", vec.Name(),
		"working_memory_capacity", cfg.WorkingMemoryCapacity,
		"context_budget_tokens", cfg.ContextBudgetTokens,
	)
	return e, nil
}

// newVectorBackend resolves the "auto" backend choice: an ANN backend
// colocated in the same database, since it scales from a handful of
// memories (full scan, MinRowsForIndex not yet crossed) up to large
// corpora (lazy IVF-style partitioning) without the caller needing to
// change anything when the corpus grows.
func newVectorBackend(gs *store.GraphStore, embed *embedding.HashProvider, cfg Config) (vectorbackend.Backend, error) {
	switch cfg.VectorBackendKind {
	case VectorBackendFile:
		return vectorbackend.NewFileBackend(cfg.VectorFileDir, embed.Dimension())
	case VectorBackendANN, VectorBackendAuto:
		return vectorbackend.NewANNBackend(gs.DB(), "memory_vectors", embed.Dimension(), cfg.ANNConfig)
	default:
		return nil, fmt.Errorf("unknown vector backend kind %q", cfg.VectorBackendKind)
	}
}

func (e *Engine) embedText(text string) ([]float32, error) {
	return e.embed.EmbedQuery(text), nil
}

func (e *Engine) loadMemoryOrNil(id string) (*memtypes.Memory, error) {
	m, err := e.store.Load(id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (e *Engine) dynamicImportance(m *memtypes.Memory) float64 {
	return importance.Dynamic(m, e.importWeights, time.Now().Unix())
}

// Close releases the engine's database handle.
func (e *Engine) Close() error {
	return e.store.Close()
}
