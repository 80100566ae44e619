// Package store provides SQLite-backed persistence for the memory
// graph, full-text index and vector backend. Uses ncruces/go-sqlite3's
// database/sql driver (pure Go, no cgo) plus the sqlite-vec extension,
// both blank-imported for side-effect driver/extension registration.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// schema defines every table the engine persists to. memories /
// associations / experiences / experience_memories / memory_summaries
// implement the graph store (SPEC_FULL.md §3, §6); memories_fts and
// memory_vectors are owned by pkg/ftsindex and pkg/vectorbackend
// respectively but colocated in the same database file.
const schema = `
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    memory_type TEXT NOT NULL,
    importance REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    last_accessed_at INTEGER NOT NULL,
    access_count INTEGER NOT NULL DEFAULT 0,
    source TEXT,
    session_id TEXT,
    forgotten INTEGER NOT NULL DEFAULT 0,
    metadata TEXT,
    confidence_score REAL NOT NULL DEFAULT 0.5,
    verification_status TEXT NOT NULL DEFAULT 'unverified',
    confidence_factors TEXT NOT NULL DEFAULT '{}',
    confidence_history TEXT
);

CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type) WHERE forgotten = 0;
CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance) WHERE forgotten = 0;
CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id) WHERE forgotten = 0;
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);

CREATE TABLE IF NOT EXISTS associations (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    relation TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 0.5,
    created_at INTEGER NOT NULL,
    UNIQUE(source_id, target_id, relation)
);

CREATE INDEX IF NOT EXISTS idx_assoc_source ON associations(source_id);
CREATE INDEX IF NOT EXISTS idx_assoc_target ON associations(target_id);

CREATE TABLE IF NOT EXISTS experiences (
    id TEXT PRIMARY KEY,
    title TEXT,
    context TEXT,
    started_at INTEGER NOT NULL,
    ended_at INTEGER,
    importance REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS experience_memories (
    experience_id TEXT NOT NULL,
    memory_id TEXT NOT NULL,
    added_at INTEGER NOT NULL,
    PRIMARY KEY (experience_id, memory_id)
);

CREATE INDEX IF NOT EXISTS idx_exp_memories_memory ON experience_memories(memory_id);

CREATE TABLE IF NOT EXISTS memory_summaries (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    original_memory_ids TEXT NOT NULL,
    memory_type TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    importance REAL NOT NULL DEFAULT 0.5
);
`

// GraphStore is the SQLite-backed memory graph. Thread-safe: a single
// *sql.DB guarded by a RWMutex, following the teacher's SQLiteStore
// posture (reads under RLock, writes under Lock).
type GraphStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates a graph store with a specific data source name. Use
// ":memory:" for an in-memory store or a file path for persistence.
func Open(dsn string) (*GraphStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &GraphStore{db: db}, nil
}

// OpenInMemory creates a throwaway in-memory graph store, primarily
// for tests.
func OpenInMemory() (*GraphStore, error) {
	return Open(":memory:")
}

// DB exposes the underlying handle so sibling packages (ftsindex,
// vectorbackend) can colocate their own virtual tables in the same
// database file without the graph store needing to know about them.
func (s *GraphStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *GraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
