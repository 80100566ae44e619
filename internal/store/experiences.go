package store

import (
	"database/sql"

	"github.com/kittclouds/memengine/internal/errs"
	"github.com/kittclouds/memengine/pkg/memtypes"
)

// SaveExperience upserts an episode row. MemoryIDs are not stored
// inline; they live in experience_memories and are reloaded by
// LoadExperience.
func (s *GraphStore) SaveExperience(e *memtypes.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endedAt sql.NullInt64
	if e.EndedAt != nil {
		endedAt = sql.NullInt64{Int64: e.EndedAt.Unix(), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO experiences (id, title, context, started_at, ended_at, importance)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, context=excluded.context, ended_at=excluded.ended_at,
			importance=excluded.importance
	`, e.ID, e.Title, e.Context, e.StartedAt.Unix(), endedAt, e.Importance)
	if err != nil {
		return errs.Storage(err, "save experience %s", e.ID)
	}
	return nil
}

// LinkMemoryToExperience records that memoryID belongs to
// experienceID. Idempotent: re-linking the same pair is a no-op.
func (s *GraphStore) LinkMemoryToExperience(experienceID, memoryID string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO experience_memories (experience_id, memory_id, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(experience_id, memory_id) DO NOTHING
	`, experienceID, memoryID, now)
	if err != nil {
		return errs.Storage(err, "link memory %s to experience %s", memoryID, experienceID)
	}
	return nil
}

// LoadExperience fetches an episode and its linked memory ids.
func (s *GraphStore) LoadExperience(id string) (*memtypes.Experience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e memtypes.Experience
	var startedAt int64
	var endedAt sql.NullInt64
	err := s.db.QueryRow(`SELECT id, title, context, started_at, ended_at, importance FROM experiences WHERE id = ?`, id).
		Scan(&e.ID, &e.Title, &e.Context, &startedAt, &endedAt, &e.Importance)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("experience %s not found", id)
	}
	if err != nil {
		return nil, errs.Storage(err, "load experience %s", id)
	}
	e.StartedAt = unixTime(startedAt)
	if endedAt.Valid {
		t := unixTime(endedAt.Int64)
		e.EndedAt = &t
	}

	rows, err := s.db.Query(`SELECT memory_id FROM experience_memories WHERE experience_id = ? ORDER BY added_at ASC`, id)
	if err != nil {
		return nil, errs.Storage(err, "load memory ids for experience %s", id)
	}
	defer rows.Close()
	for rows.Next() {
		var mid string
		if err := rows.Scan(&mid); err != nil {
			return nil, err
		}
		e.MemoryIDs = append(e.MemoryIDs, mid)
	}
	return &e, rows.Err()
}

// SaveSummary persists a consolidation summary record.
func (s *GraphStore) SaveSummary(sum *memtypes.MemorySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idsJSON, err := marshalStrings(sum.OriginalMemoryIDs)
	if err != nil {
		return errs.Serialization(err, "encode original memory ids for summary %s", sum.ID)
	}
	_, err = s.db.Exec(`
		INSERT INTO memory_summaries (id, text, original_memory_ids, memory_type, created_at, importance)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text=excluded.text, importance=excluded.importance
	`, sum.ID, sum.Text, idsJSON, string(sum.MemoryType), sum.CreatedAt.Unix(), sum.Importance)
	if err != nil {
		return errs.Storage(err, "save summary %s", sum.ID)
	}
	return nil
}
