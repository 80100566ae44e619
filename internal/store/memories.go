package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kittclouds/memengine/internal/errs"
	"github.com/kittclouds/memengine/pkg/memtypes"
)

type confidenceFactorsRow struct {
	SourceReliability    float64  `json:"source_reliability"`
	SourceType           string   `json:"source_type,omitempty"`
	ConsistencyScore     float64  `json:"consistency_score"`
	RetrievalStability   float64  `json:"retrieval_stability"`
	UserVerification     float64  `json:"user_verification"`
	CorroborationCount   int      `json:"corroboration_count"`
	CorroborationScore   float64  `json:"corroboration_score"`
	CorroborationSources []string `json:"corroboration_sources,omitempty"`
	Contradictions       []string `json:"contradictions,omitempty"`
	Evidence             []string `json:"evidence,omitempty"`
}

type confidenceHistoryRow struct {
	Timestamp int64   `json:"timestamp"`
	OldScore  float64 `json:"old_score"`
	NewScore  float64 `json:"new_score"`
	Reason    string  `json:"reason"`
}

func encodeConfidence(c memtypes.Confidence) (factorsJSON string, historyJSON sql.NullString, err error) {
	row := confidenceFactorsRow{
		SourceReliability:    c.Factors.SourceReliability,
		ConsistencyScore:     c.Factors.ConsistencyScore,
		RetrievalStability:   c.Factors.RetrievalStability,
		UserVerification:     c.Factors.UserVerification,
		CorroborationCount:   c.Factors.CorroborationCount,
		CorroborationScore:   c.Factors.CorroborationScore,
		CorroborationSources: c.Factors.CorroborationSources,
		Contradictions:       c.Factors.Contradictions,
		Evidence:             c.Factors.Evidence,
	}
	if c.Factors.SourceType != nil {
		row.SourceType = string(*c.Factors.SourceType)
	}
	fb, err := json.Marshal(row)
	if err != nil {
		return "", sql.NullString{}, err
	}

	if len(c.History) == 0 {
		return string(fb), sql.NullString{}, nil
	}
	hist := make([]confidenceHistoryRow, len(c.History))
	for i, h := range c.History {
		hist[i] = confidenceHistoryRow{
			Timestamp: h.Timestamp.Unix(),
			OldScore:  h.OldScore,
			NewScore:  h.NewScore,
			Reason:    h.Reason,
		}
	}
	hb, err := json.Marshal(hist)
	if err != nil {
		return "", sql.NullString{}, err
	}
	return string(fb), sql.NullString{String: string(hb), Valid: true}, nil
}

func decodeConfidence(score float64, status string, factorsJSON string, historyJSON sql.NullString, updatedAt time.Time) (memtypes.Confidence, error) {
	var row confidenceFactorsRow
	if factorsJSON != "" {
		if err := json.Unmarshal([]byte(factorsJSON), &row); err != nil {
			return memtypes.Confidence{}, err
		}
	}
	factors := memtypes.ConfidenceFactors{
		SourceReliability:    row.SourceReliability,
		ConsistencyScore:     row.ConsistencyScore,
		RetrievalStability:   row.RetrievalStability,
		UserVerification:     row.UserVerification,
		CorroborationCount:   row.CorroborationCount,
		CorroborationScore:   row.CorroborationScore,
		CorroborationSources: row.CorroborationSources,
		Contradictions:       row.Contradictions,
		Evidence:             row.Evidence,
	}
	if row.SourceType != "" {
		sr := memtypes.SourceReliability(row.SourceType)
		factors.SourceType = &sr
	}

	var history []memtypes.ConfidenceHistoryEntry
	if historyJSON.Valid && historyJSON.String != "" {
		var rows []confidenceHistoryRow
		if err := json.Unmarshal([]byte(historyJSON.String), &rows); err != nil {
			return memtypes.Confidence{}, err
		}
		history = make([]memtypes.ConfidenceHistoryEntry, len(rows))
		for i, r := range rows {
			history[i] = memtypes.ConfidenceHistoryEntry{
				Timestamp: time.Unix(r.Timestamp, 0).UTC(),
				OldScore:  r.OldScore,
				NewScore:  r.NewScore,
				Reason:    r.Reason,
			}
		}
	}

	return memtypes.Confidence{
		Score:     score,
		Factors:   factors,
		Status:    memtypes.VerificationStatus(status),
		History:   history,
		UpdatedAt: updatedAt,
	}, nil
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Save upserts a memory by id.
func (s *GraphStore) Save(m *memtypes.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	factorsJSON, historyJSON, err := encodeConfidence(m.Confidence)
	if err != nil {
		return errs.Serialization(err, "encode confidence for memory %s", m.ID)
	}
	metadataJSON, err := encodeMetadata(m.Metadata)
	if err != nil {
		return errs.Serialization(err, "encode metadata for memory %s", m.ID)
	}

	var sourceCol, sessionCol sql.NullString
	if m.Source != "" {
		sourceCol = sql.NullString{String: m.Source, Valid: true}
	}
	if m.SessionID != "" {
		sessionCol = sql.NullString{String: m.SessionID, Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO memories (id, content, memory_type, importance, created_at, updated_at,
			last_accessed_at, access_count, source, session_id, forgotten, metadata,
			confidence_score, verification_status, confidence_factors, confidence_history)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content=excluded.content, memory_type=excluded.memory_type, importance=excluded.importance,
			updated_at=excluded.updated_at, last_accessed_at=excluded.last_accessed_at,
			access_count=excluded.access_count, source=excluded.source, session_id=excluded.session_id,
			forgotten=excluded.forgotten, metadata=excluded.metadata, confidence_score=excluded.confidence_score,
			verification_status=excluded.verification_status, confidence_factors=excluded.confidence_factors,
			confidence_history=excluded.confidence_history
	`, m.ID, m.Content, string(m.MemoryType), m.Importance, m.CreatedAt.Unix(), m.UpdatedAt.Unix(),
		m.LastAccessedAt.Unix(), m.AccessCount, sourceCol, sessionCol, boolToInt(m.Forgotten), metadataJSON,
		m.Confidence.Score, string(m.Confidence.Status), factorsJSON, historyJSON)
	if err != nil {
		return errs.Storage(err, "save memory %s", m.ID)
	}
	return nil
}

func scanMemory(row interface {
	Scan(dest ...any) error
}) (*memtypes.Memory, error) {
	var m memtypes.Memory
	var memoryType, confStatus, confFactors string
	var createdAt, updatedAt, lastAccessedAt int64
	var forgotten int
	var source, sessionID, metadata, confHistory sql.NullString
	var importance, confScore float64

	err := row.Scan(&m.ID, &m.Content, &memoryType, &importance, &createdAt, &updatedAt,
		&lastAccessedAt, &m.AccessCount, &source, &sessionID, &forgotten, &metadata,
		&confScore, &confStatus, &confFactors, &confHistory)
	if err != nil {
		return nil, err
	}

	m.MemoryType = memtypes.MemoryType(memoryType)
	m.Importance = importance
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	m.LastAccessedAt = time.Unix(lastAccessedAt, 0).UTC()
	m.Forgotten = forgotten != 0
	if source.Valid {
		m.Source = source.String
	}
	if sessionID.Valid {
		m.SessionID = sessionID.String
	}
	meta, err := decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	m.Metadata = meta

	conf, err := decodeConfidence(confScore, confStatus, confFactors, confHistory, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Confidence = conf

	return &m, nil
}
