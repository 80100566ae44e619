// Package engine wires the graph store, full-text index, embedding
// provider, vector backend, working memory, episodic layer, and
// maintenance runner behind a single constructed facade
// (SPEC_FULL.md §4.M). Callers interact with an Engine, never with the
// individual subsystems directly.
package engine

import (
	"log/slog"
	"os"

	"github.com/kittclouds/memengine/pkg/retrieval"
	"github.com/kittclouds/memengine/pkg/vectorbackend"
)

// VectorBackendKind selects which vector store implementation to use.
type VectorBackendKind string

const (
	VectorBackendAuto VectorBackendKind = "auto"
	VectorBackendFile VectorBackendKind = "file"
	VectorBackendANN  VectorBackendKind = "ann"
)

// Config collects every option settable via functional options.
type Config struct {
	DSN string

	VectorBackendKind VectorBackendKind
	VectorFileDir     string
	ANNConfig         vectorbackend.ANNConfig

	HybridWeights retrieval.Config

	WorkingMemoryCapacity int
	ContextBudgetTokens   int

	Logger *slog.Logger
}

// DefaultConfig mirrors SPEC_FULL.md §6's recognized option defaults.
func DefaultConfig() Config {
	return Config{
		DSN:                   "memengine.db",
		VectorBackendKind:     VectorBackendAuto,
		VectorFileDir:         "memengine-vectors",
		ANNConfig:             vectorbackend.DefaultANNConfig(),
		HybridWeights:         retrieval.DefaultConfig(),
		WorkingMemoryCapacity: 20,
		ContextBudgetTokens:   2000,
		Logger:                slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

// Option configures an Engine at construction time.
type Option func(*Config)

// WithDSN sets the SQLite data source name backing the graph store,
// full-text index, and (when selected) the ANN vector backend.
func WithDSN(dsn string) Option {
	return func(c *Config) { c.DSN = dsn }
}

// WithVectorBackend selects which vector store implementation to use.
func WithVectorBackend(kind VectorBackendKind) Option {
	return func(c *Config) { c.VectorBackendKind = kind }
}

// WithVectorFileDir sets the root directory for the file vector
// backend.
func WithVectorFileDir(dir string) Option {
	return func(c *Config) { c.VectorFileDir = dir }
}

// WithANNConfig tunes the ANN backend's partitioning and distance
// metric.
func WithANNConfig(cfg vectorbackend.ANNConfig) Option {
	return func(c *Config) { c.ANNConfig = cfg }
}

// WithHybridWeights overrides the default hybrid retrieval weights and
// limits.
func WithHybridWeights(cfg retrieval.Config) Option {
	return func(c *Config) { c.HybridWeights = cfg }
}

// WithWorkingMemoryCapacity bounds the working-memory active set size.
func WithWorkingMemoryCapacity(n int) Option {
	return func(c *Config) { c.WorkingMemoryCapacity = n }
}

// WithContextBudget sets the default token budget for BuildContext.
func WithContextBudget(tokens int) Option {
	return func(c *Config) { c.ContextBudgetTokens = tokens }
}

// WithLogger overrides the structured logger used at component
// boundaries (construction, maintenance summaries, degraded-recall
// fallback).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
