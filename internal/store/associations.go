package store

import (
	"database/sql"

	"github.com/kittclouds/memengine/internal/errs"
	"github.com/kittclouds/memengine/pkg/memtypes"
)

// CreateAssociation upserts an edge; re-creating the same
// (source, target, relation) triple updates its weight, matching the
// "unique by relation triple" invariant in SPEC_FULL.md §3.
func (s *GraphStore) CreateAssociation(a *memtypes.Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO associations (id, source_id, target_id, relation, weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relation) DO UPDATE SET weight = excluded.weight
	`, a.ID, a.SourceID, a.TargetID, string(a.Relation), a.Weight, a.CreatedAt.Unix())
	if err != nil {
		return errs.Storage(err, "create association %s->%s", a.SourceID, a.TargetID)
	}
	return nil
}

func scanAssociation(row interface{ Scan(dest ...any) error }) (*memtypes.Association, error) {
	var a memtypes.Association
	var relation string
	var createdAt int64
	if err := row.Scan(&a.ID, &a.SourceID, &a.TargetID, &relation, &a.Weight, &createdAt); err != nil {
		return nil, err
	}
	a.Relation = memtypes.RelationType(relation)
	a.CreatedAt = unixTime(createdAt)
	return &a, nil
}

func scanAssociationRows(rows *sql.Rows) ([]*memtypes.Association, error) {
	defer rows.Close()
	var out []*memtypes.Association
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAssociations returns every edge touching memoryID, either as
// source or target.
func (s *GraphStore) GetAssociations(memoryID string) ([]*memtypes.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source_id, target_id, relation, weight, created_at FROM associations
		WHERE source_id = ? OR target_id = ?
	`, memoryID, memoryID)
	if err != nil {
		return nil, errs.Storage(err, "get associations for memory %s", memoryID)
	}
	return scanAssociationRows(rows)
}

// GetAssociationsBetween returns every edge whose endpoints are both in
// ids.
func (s *GraphStore) GetAssociationsBetween(ids []string) ([]*memtypes.Association, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders, args := inClause(ids)
	q := `SELECT id, source_id, target_id, relation, weight, created_at FROM associations
		WHERE source_id IN (` + placeholders + `) AND target_id IN (` + placeholders + `)`
	rows, err := s.db.Query(q, append(append([]any{}, args...), args...)...)
	if err != nil {
		return nil, errs.Storage(err, "get associations between memories")
	}
	return scanAssociationRows(rows)
}

// RewriteAssociationEndpoint moves assocID's source or target (whichever
// equals fromID) to toID, deduplicating against any association that
// already exists in the new direction by dropping the rewritten row
// instead of violating the (source,target,relation) unique constraint.
// Used by maintenance merges to repoint edges from a loser memory to
// its surviving duplicate.
func (s *GraphStore) RewriteAssociationEndpoint(assocID, fromID, toID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sourceID, targetID, relation string
	if err := s.db.QueryRow(`SELECT source_id, target_id, relation FROM associations WHERE id = ?`, assocID).
		Scan(&sourceID, &targetID, &relation); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errs.Storage(err, "load association %s for rewrite", assocID)
	}

	newSource, newTarget := sourceID, targetID
	if sourceID == fromID {
		newSource = toID
	}
	if targetID == fromID {
		newTarget = toID
	}
	if newSource == newTarget {
		// rewriting would create a self-loop; drop the edge instead
		_, err := s.db.Exec(`DELETE FROM associations WHERE id = ?`, assocID)
		return err
	}

	var existing string
	err := s.db.QueryRow(`SELECT id FROM associations WHERE source_id = ? AND target_id = ? AND relation = ? AND id != ?`,
		newSource, newTarget, relation, assocID).Scan(&existing)
	if err == nil {
		_, delErr := s.db.Exec(`DELETE FROM associations WHERE id = ?`, assocID)
		return delErr
	}
	if err != sql.ErrNoRows {
		return errs.Storage(err, "check existing association before rewrite")
	}

	if _, err := s.db.Exec(`UPDATE associations SET source_id = ?, target_id = ? WHERE id = ?`,
		newSource, newTarget, assocID); err != nil {
		return errs.Storage(err, "rewrite association %s", assocID)
	}
	return nil
}

func inClause(ids []string) (string, []any) {
	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	return placeholders, args
}
