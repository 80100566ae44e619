package store

import (
	"database/sql"
	"encoding/json"

	"github.com/kittclouds/memengine/internal/errs"
)

// exportedMemory is the wire shape for a dumped memory row, kept
// separate from memtypes.Memory so the export format doesn't shift
// every time the in-process type does.
type exportedMemory struct {
	ID                  string   `json:"id"`
	Content             string   `json:"content"`
	MemoryType          string   `json:"memoryType"`
	Importance          float64  `json:"importance"`
	CreatedAt           int64    `json:"createdAt"`
	UpdatedAt           int64    `json:"updatedAt"`
	LastAccessedAt      int64    `json:"lastAccessedAt"`
	AccessCount         int64    `json:"accessCount"`
	Source              string   `json:"source,omitempty"`
	SessionID           string   `json:"sessionId,omitempty"`
	Forgotten           bool     `json:"forgotten"`
	ConfidenceScore     float64  `json:"confidenceScore"`
	VerificationStatus  string   `json:"verificationStatus"`
}

type exportedAssociation struct {
	ID        string  `json:"id"`
	SourceID  string  `json:"sourceId"`
	TargetID  string  `json:"targetId"`
	Relation  string  `json:"relation"`
	Weight    float64 `json:"weight"`
	CreatedAt int64   `json:"createdAt"`
}

type exportDump struct {
	Memories     []exportedMemory      `json:"memories"`
	Associations []exportedAssociation `json:"associations"`
}

// Export serializes the live (and forgotten) memories and associations
// to JSON, mirroring the teacher's Export/Import round-trip for OPFS
// sync — here used as the engine's backup/restore primitive.
func (s *GraphStore) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var dump exportDump

	rows, err := s.db.Query(`SELECT id, content, memory_type, importance, created_at, updated_at,
		last_accessed_at, access_count, source, session_id, forgotten, confidence_score, verification_status
		FROM memories`)
	if err != nil {
		return nil, errs.Storage(err, "export memories")
	}
	for rows.Next() {
		var m exportedMemory
		var source, sessionID sql.NullString
		var forgotten int
		if err := rows.Scan(&m.ID, &m.Content, &m.MemoryType, &m.Importance, &m.CreatedAt, &m.UpdatedAt,
			&m.LastAccessedAt, &m.AccessCount, &source, &sessionID, &forgotten,
			&m.ConfidenceScore, &m.VerificationStatus); err != nil {
			rows.Close()
			return nil, err
		}
		m.Source = source.String
		m.SessionID = sessionID.String
		m.Forgotten = forgotten != 0
		dump.Memories = append(dump.Memories, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "export memories")
	}

	arows, err := s.db.Query(`SELECT id, source_id, target_id, relation, weight, created_at FROM associations`)
	if err != nil {
		return nil, errs.Storage(err, "export associations")
	}
	for arows.Next() {
		var a exportedAssociation
		if err := arows.Scan(&a.ID, &a.SourceID, &a.TargetID, &a.Relation, &a.Weight, &a.CreatedAt); err != nil {
			arows.Close()
			return nil, err
		}
		dump.Associations = append(dump.Associations, a)
	}
	arows.Close()
	if err := arows.Err(); err != nil {
		return nil, errs.Storage(err, "export associations")
	}

	b, err := json.Marshal(dump)
	if err != nil {
		return nil, errs.Serialization(err, "marshal export dump")
	}
	return b, nil
}

// Import restores memories and associations from a dump produced by
// Export, upserting by id.
func (s *GraphStore) Import(data []byte) error {
	var dump exportDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return errs.Serialization(err, "unmarshal export dump")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range dump.Memories {
		_, err := s.db.Exec(`
			INSERT INTO memories (id, content, memory_type, importance, created_at, updated_at,
				last_accessed_at, access_count, source, session_id, forgotten, metadata,
				confidence_score, verification_status, confidence_factors, confidence_history)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, '{}', NULL)
			ON CONFLICT(id) DO UPDATE SET
				content=excluded.content, memory_type=excluded.memory_type, importance=excluded.importance,
				updated_at=excluded.updated_at, last_accessed_at=excluded.last_accessed_at,
				access_count=excluded.access_count, forgotten=excluded.forgotten,
				confidence_score=excluded.confidence_score, verification_status=excluded.verification_status
		`, m.ID, m.Content, m.MemoryType, m.Importance, m.CreatedAt, m.UpdatedAt, m.LastAccessedAt,
			m.AccessCount, nullIfEmpty(m.Source), nullIfEmpty(m.SessionID), boolToInt(m.Forgotten),
			m.ConfidenceScore, m.VerificationStatus)
		if err != nil {
			return errs.Storage(err, "import memory %s", m.ID)
		}
	}

	for _, a := range dump.Associations {
		_, err := s.db.Exec(`
			INSERT INTO associations (id, source_id, target_id, relation, weight, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_id, target_id, relation) DO UPDATE SET weight = excluded.weight
		`, a.ID, a.SourceID, a.TargetID, a.Relation, a.Weight, a.CreatedAt)
		if err != nil {
			return errs.Storage(err, "import association %s", a.ID)
		}
	}

	return nil
}
