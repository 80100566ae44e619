package store

import (
	"database/sql"
	"time"

	"github.com/kittclouds/memengine/internal/errs"
	"github.com/kittclouds/memengine/pkg/memtypes"
)

const memColumns = `id, content, memory_type, importance, created_at, updated_at,
	last_accessed_at, access_count, source, session_id, forgotten, metadata,
	confidence_score, verification_status, confidence_factors, confidence_history`

// Load fetches a memory by id regardless of forgotten state.
func (s *GraphStore) Load(id string) (*memtypes.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+memColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("memory %s not found", id)
	}
	if err != nil {
		return nil, errs.Storage(err, "load memory %s", id)
	}
	return m, nil
}

// Delete hard-deletes a memory and cascades to its associations.
func (s *GraphStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM associations WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return errs.Storage(err, "cascade-delete associations for memory %s", id)
	}
	if _, err := s.db.Exec(`DELETE FROM experience_memories WHERE memory_id = ?`, id); err != nil {
		return errs.Storage(err, "cascade-delete episode links for memory %s", id)
	}
	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return errs.Storage(err, "delete memory %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("memory %s not found", id)
	}
	return nil
}

// Forget soft-deletes a memory: hidden from retrieval, retained for
// restore/audit.
func (s *GraphStore) Forget(id string) error {
	return s.setForgotten(id, true)
}

// Restore reinstates a soft-deleted memory.
func (s *GraphStore) Restore(id string) error {
	return s.setForgotten(id, false)
}

func (s *GraphStore) setForgotten(id string, forgotten bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE memories SET forgotten = ?, updated_at = ? WHERE id = ?`,
		boolToInt(forgotten), time.Now().Unix(), id)
	if err != nil {
		return errs.Storage(err, "set forgotten=%v for memory %s", forgotten, id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("memory %s not found", id)
	}
	return nil
}

// RecordAccess atomically bumps access_count and last_accessed_at.
func (s *GraphStore) RecordAccess(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		now.Unix(), id)
	if err != nil {
		return errs.Storage(err, "record access for memory %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("memory %s not found", id)
	}
	return nil
}

func scanMemoryRows(rows *sql.Rows) ([]*memtypes.Memory, error) {
	defer rows.Close()
	var out []*memtypes.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetByType returns non-forgotten memories of the given type, ordered
// by importance desc then updated_at desc.
func (s *GraphStore) GetByType(memoryType memtypes.MemoryType, limit int) ([]*memtypes.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT `+memColumns+` FROM memories
		WHERE memory_type = ? AND forgotten = 0
		ORDER BY importance DESC, updated_at DESC
		LIMIT ?
	`, string(memoryType), limit)
	if err != nil {
		return nil, errs.Storage(err, "get memories by type %s", memoryType)
	}
	return scanMemoryRows(rows)
}

// GetHighImportance returns non-forgotten memories with
// importance >= threshold.
func (s *GraphStore) GetHighImportance(threshold float64, limit int) ([]*memtypes.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT `+memColumns+` FROM memories
		WHERE importance >= ? AND forgotten = 0
		ORDER BY importance DESC
		LIMIT ?
	`, threshold, limit)
	if err != nil {
		return nil, errs.Storage(err, "get high-importance memories")
	}
	return scanMemoryRows(rows)
}

// Filter is a predicate over scalar/temporal memory fields, used by
// QueryWithFilter for ad hoc temporal queries (maintenance, audits).
type Filter struct {
	MemoryType       *memtypes.MemoryType
	MinImportance    *float64
	MaxImportance    *float64
	CreatedBefore    *time.Time
	CreatedAfter     *time.Time
	IncludeForgotten bool
	Limit            int
}

// QueryWithFilter applies an ad hoc predicate over memories.
func (s *GraphStore) QueryWithFilter(f Filter) ([]*memtypes.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT ` + memColumns + ` FROM memories WHERE 1=1`
	var args []any
	if !f.IncludeForgotten {
		q += ` AND forgotten = 0`
	}
	if f.MemoryType != nil {
		q += ` AND memory_type = ?`
		args = append(args, string(*f.MemoryType))
	}
	if f.MinImportance != nil {
		q += ` AND importance >= ?`
		args = append(args, *f.MinImportance)
	}
	if f.MaxImportance != nil {
		q += ` AND importance <= ?`
		args = append(args, *f.MaxImportance)
	}
	if f.CreatedBefore != nil {
		q += ` AND created_at < ?`
		args = append(args, f.CreatedBefore.Unix())
	}
	if f.CreatedAfter != nil {
		q += ` AND created_at > ?`
		args = append(args, f.CreatedAfter.Unix())
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, errs.Storage(err, "query memories with filter")
	}
	return scanMemoryRows(rows)
}

// GetPruningCandidates returns non-Identity, non-forgotten memories
// below threshold importance and older than minAgeDays.
func (s *GraphStore) GetPruningCandidates(threshold float64, minAgeDays int, now time.Time) ([]*memtypes.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := now.AddDate(0, 0, -minAgeDays).Unix()
	rows, err := s.db.Query(`
		SELECT `+memColumns+` FROM memories
		WHERE forgotten = 0 AND memory_type != ? AND importance < ? AND created_at < ?
		ORDER BY importance ASC
	`, string(memtypes.Identity), threshold, cutoff)
	if err != nil {
		return nil, errs.Storage(err, "get pruning candidates")
	}
	return scanMemoryRows(rows)
}

// CountLive returns the number of non-forgotten memories in the graph.
// The ANN vector backend keeps its own row count over its colocated
// vec0 table (vectorbackend.(*ANNBackend).rowCount) rather than calling
// this, since the two tables can diverge transiently; CountLive is the
// store-level figure for callers that want the live memory count
// itself (maintenance reporting, operator tooling).
func (s *GraphStore) CountLive() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE forgotten = 0`).Scan(&n); err != nil {
		return 0, errs.Storage(err, "count live memories")
	}
	return n, nil
}
