// Package ftsindex provides BM25-ranked full-text search over memory
// content using a SQLite FTS5 virtual table colocated in the graph
// store's database (SPEC_FULL.md §4.C).
package ftsindex

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/derekparker/trie/v3"

	"github.com/kittclouds/memengine/internal/errs"
	"github.com/kittclouds/memengine/pkg/memtypes"
	"github.com/kittclouds/memengine/pkg/tokenize"
)

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	id UNINDEXED,
	content,
	memory_type UNINDEXED,
	source UNINDEXED,
	tags,
	tokenize = 'unicode61'
);
`

// Doc is the document shape indexed per memory.
type Doc struct {
	ID         string
	Content    string
	MemoryType memtypes.MemoryType
	Source     string
	Tags       []string
	Importance float64
}

// SearchConfig controls a single search call.
type SearchConfig struct {
	MemoryType *memtypes.MemoryType
	MaxResults int
	Fuzzy      bool
}

// Result pairs a document id with its BM25 score, higher-is-better.
type Result struct {
	ID    string
	Score float64
}

// Index is the BM25 full-text index. Reads and writes share the
// underlying *sql.DB with the graph store; the index keeps its own
// mutex only to guard the in-memory fuzzy vocabulary trie, following
// the teacher's per-component RWMutex posture rather than a single
// mutex shared across unrelated subsystems.
type Index struct {
	db *sql.DB

	vocabMu sync.RWMutex
	vocab   *trie.Trie
}

// New opens (creating if absent) the FTS5 virtual table in db and
// returns a ready-to-use index. db is expected to be the same handle
// the graph store uses, so index and store writes can share a
// transaction when the caller wants that.
func New(db *sql.DB) (*Index, error) {
	if _, err := db.Exec(ftsSchema); err != nil {
		return nil, errs.SearchIndex(err, "create fts schema")
	}
	idx := &Index{db: db, vocab: trie.New()}
	if err := idx.rebuildVocab(); err != nil {
		return nil, err
	}
	return idx, nil
}

// IndexDoc upserts a document by id: delete-then-insert, since FTS5
// has no native upsert.
func (idx *Index) IndexDoc(d Doc) error {
	if strings.TrimSpace(d.Content) == "" {
		return errs.Validationf("cannot index empty content for %s", d.ID)
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return errs.SearchIndex(err, "begin index transaction for %s", d.ID)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memories_fts WHERE id = ?`, d.ID); err != nil {
		return errs.SearchIndex(err, "delete old doc %s before reindex", d.ID)
	}
	if _, err := tx.Exec(`INSERT INTO memories_fts (id, content, memory_type, source, tags)
		VALUES (?, ?, ?, ?, ?)`, d.ID, d.Content, string(d.MemoryType), d.Source, strings.Join(d.Tags, " ")); err != nil {
		return errs.SearchIndex(err, "insert doc %s", d.ID)
	}
	if err := tx.Commit(); err != nil {
		return errs.SearchIndex(err, "commit index write for %s", d.ID)
	}

	idx.addVocab(d.Content)
	return nil
}

// Delete removes a document from the index.
func (idx *Index) Delete(id string) error {
	if _, err := idx.db.Exec(`DELETE FROM memories_fts WHERE id = ?`, id); err != nil {
		return errs.SearchIndex(err, "delete doc %s", id)
	}
	return nil
}

// ReindexAll clears the index and reloads it from docs, the recovery
// primitive when the index has drifted from the store.
func (idx *Index) ReindexAll(docs []Doc) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return errs.SearchIndex(err, "begin reindex transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memories_fts`); err != nil {
		return errs.SearchIndex(err, "clear fts table")
	}
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO memories_fts (id, content, memory_type, source, tags)
			VALUES (?, ?, ?, ?, ?)`, d.ID, d.Content, string(d.MemoryType), d.Source, strings.Join(d.Tags, " ")); err != nil {
			return errs.SearchIndex(err, "insert doc %s during reindex", d.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.SearchIndex(err, "commit reindex")
	}
	return idx.rebuildVocab()
}

// Search runs a standard or fuzzy BM25 query over content and tags,
// optionally constrained to a memory type, returning up to
// cfg.MaxResults results with higher-is-better scores (SQLite FTS5's
// bm25() is lower-is-better; it is negated here).
func (idx *Index) Search(query string, cfg SearchConfig) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 25
	}

	matchExpr, err := idx.buildMatchExpr(query, cfg.Fuzzy)
	if err != nil {
		return nil, err
	}
	if matchExpr == "" {
		return nil, nil
	}

	q := `SELECT id, bm25(memories_fts) FROM memories_fts WHERE memories_fts MATCH ?`
	args := []any{matchExpr}
	if cfg.MemoryType != nil {
		q += ` AND memory_type = ?`
		args = append(args, string(*cfg.MemoryType))
	}
	q += ` ORDER BY bm25(memories_fts) LIMIT ?`
	args = append(args, maxResults)

	rows, err := idx.db.Query(q, args...)
	if err != nil {
		return nil, errs.SearchIndex(err, "search fts for %q", query)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var id string
		var raw float64
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errs.SearchIndex(err, "scan search result")
		}
		out = append(out, Result{ID: id, Score: -raw})
	}
	return out, rows.Err()
}

// buildMatchExpr turns a free-text query into an FTS5 MATCH expression
// over content and tags. In fuzzy mode each token is expanded to its
// edit-distance-1 neighbors found in the indexed vocabulary and OR'd
// together.
func (idx *Index) buildMatchExpr(query string, fuzzy bool) (string, error) {
	tokens := tokenize.Tokens(tokenize.Canonicalize(query))
	if len(tokens) == 0 {
		return "", nil
	}

	var clauses []string
	for _, tok := range tokens {
		if !fuzzy {
			clauses = append(clauses, fmt.Sprintf(`"%s"`, escapeFTS(tok)))
			continue
		}
		expansions := idx.fuzzyExpand(tok)
		if len(expansions) == 0 {
			expansions = []string{tok}
		}
		var orTerms []string
		for _, e := range expansions {
			orTerms = append(orTerms, fmt.Sprintf(`"%s"`, escapeFTS(e)))
		}
		clauses = append(clauses, "("+strings.Join(orTerms, " OR ")+")")
	}
	return "{content tags} : (" + strings.Join(clauses, " AND ") + ")", nil
}

func escapeFTS(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// fuzzyExpand returns vocabulary terms within edit distance 1 of tok.
// The trie holds the full indexed vocabulary; Keys() enumerates it and
// each candidate is filtered by exact Levenshtein distance, since the
// trie package's own traversal is prefix-oriented rather than
// edit-distance-aware.
func (idx *Index) fuzzyExpand(tok string) []string {
	idx.vocabMu.RLock()
	defer idx.vocabMu.RUnlock()
	if idx.vocab == nil {
		return nil
	}
	within := make([]string, 0, 8)
	for _, m := range idx.vocab.Keys() {
		if editDistanceAtMost1(tok, m) {
			within = append(within, m)
		}
	}
	sort.Strings(within)
	return within
}

func editDistanceAtMost1(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := len(a), len(b)
	if abs(la-lb) > 1 {
		return false
	}
	// classic single-row Levenshtein bounded early-exit
	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > 1 {
			return false
		}
		prev = curr
	}
	return prev[lb] <= 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// addVocab folds a document's tokens into the fuzzy-match trie.
func (idx *Index) addVocab(content string) {
	idx.vocabMu.Lock()
	defer idx.vocabMu.Unlock()
	for _, tok := range tokenize.Normalize(content) {
		idx.vocab.Add(tok, nil)
	}
}

// rebuildVocab reloads the fuzzy vocabulary from the live index
// content, used after ReindexAll.
func (idx *Index) rebuildVocab() error {
	rows, err := idx.db.Query(`SELECT content FROM memories_fts`)
	if err != nil {
		return errs.SearchIndex(err, "rebuild fuzzy vocabulary")
	}
	defer rows.Close()

	idx.vocabMu.Lock()
	defer idx.vocabMu.Unlock()
	idx.vocab = trie.New()
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return err
		}
		for _, tok := range tokenize.Normalize(content) {
			idx.vocab.Add(tok, nil)
		}
	}
	return rows.Err()
}
