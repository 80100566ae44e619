package store

import "github.com/kittclouds/memengine/internal/errs"

// Neighbor is one hop of a breadth-first graph expansion: the reached
// memory id plus the association that reached it.
type Neighbor struct {
	MemoryID    string
	Association *associationEdge
}

type associationEdge struct {
	SourceID string
	TargetID string
	Relation string
	Weight   float64
}

// GetNeighbors performs a breadth-first traversal from id out to depth
// hops over associations in either direction, deduplicating nodes and
// edges by id. The seed id itself is never included in the result, ids
// in exclude are skipped entirely, and forgotten memories are excluded
// from the returned set and never traversed through (SPEC_FULL.md
// §4.B).
func (s *GraphStore) GetNeighbors(id string, depth int, exclude []string) ([]Neighbor, error) {
	if depth <= 0 {
		return nil, nil
	}

	excluded := make(map[string]bool, len(exclude)+1)
	for _, e := range exclude {
		excluded[e] = true
	}

	visited := map[string]bool{id: true}
	frontier := []string{id}
	var result []Neighbor
	seenEdge := make(map[string]bool)

	for d := 0; d < depth; d++ {
		if len(frontier) == 0 {
			break
		}
		edges, err := s.edgesTouching(frontier)
		if err != nil {
			return nil, err
		}
		var next []string
		for _, e := range edges {
			// the node on the "far side" of the edge from whichever
			// frontier member it touches
			far := ""
			if contains(frontier, e.SourceID) && !contains(frontier, e.TargetID) {
				far = e.TargetID
			} else if contains(frontier, e.TargetID) && !contains(frontier, e.SourceID) {
				far = e.SourceID
			} else if e.SourceID != e.TargetID {
				// both sides happen to be in the frontier (a cycle edge
				// among already-visited nodes): nothing new to add
				continue
			}
			if far == "" || visited[far] || excluded[far] {
				continue
			}
			edgeKey := e.SourceID + "|" + e.TargetID + "|" + e.Relation
			if seenEdge[edgeKey] {
				continue
			}
			seenEdge[edgeKey] = true
			visited[far] = true
			next = append(next, far)
			result = append(result, Neighbor{
				MemoryID: far,
				Association: &associationEdge{
					SourceID: e.SourceID,
					TargetID: e.TargetID,
					Relation: e.Relation,
					Weight:   e.Weight,
				},
			})
		}
		frontier = next
	}

	return result, nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func (s *GraphStore) edgesTouching(ids []string) ([]associationEdge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders, args := inClause(ids)
	q := `SELECT a.source_id, a.target_id, a.relation, a.weight
		FROM associations a
		JOIN memories ms ON ms.id = a.source_id
		JOIN memories mt ON mt.id = a.target_id
		WHERE (a.source_id IN (` + placeholders + `) OR a.target_id IN (` + placeholders + `))
		AND ms.forgotten = 0 AND mt.forgotten = 0`
	rows, err := s.db.Query(q, append(append([]any{}, args...), args...)...)
	if err != nil {
		return nil, errs.Storage(err, "fetch edges touching frontier")
	}
	defer rows.Close()

	var out []associationEdge
	for rows.Next() {
		var e associationEdge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Relation, &e.Weight); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
