package vectorbackend

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"

	"github.com/kittclouds/memengine/internal/errs"
)

// DistanceMetric selects how ANNBackend scores candidate vectors.
type DistanceMetric string

const (
	MetricCosine DistanceMetric = "cosine"
	MetricL2     DistanceMetric = "l2"
	MetricDot    DistanceMetric = "dot"
)

// ANNConfig tunes the lazy IVF-style partitioning layered over the
// vec0 virtual table.
type ANNConfig struct {
	MinRowsForIndex int
	NProbes         int
	RefineFactor    int
	Metric          DistanceMetric
	// AnnKind "ivfflat" or "off" forces a full scan without
	// partitioning even once MinRowsForIndex is exceeded.
	AnnKind string
}

// DefaultANNConfig mirrors SPEC_FULL.md §4.E's defaults.
func DefaultANNConfig() ANNConfig {
	return ANNConfig{
		MinRowsForIndex: 256,
		NProbes:         24,
		RefineFactor:    2,
		Metric:          MetricCosine,
		AnnKind:         "ivfpq",
	}
}

// ANNBackend stores vectors in a sqlite-vec vec0 virtual table
// colocated with the graph store's database, with a best-effort
// delete-before-upsert to guarantee at most one row per id, and a
// lazily-built coarse-partition index once the row count crosses
// MinRowsForIndex.
type ANNBackend struct {
	db        *sql.DB
	table     string
	dimension int
	cfg       ANNConfig

	mu                    sync.Mutex
	partitions            []center // coarse centroids, nil until built
	lastPartitionRowCount int      // live row count when partitions was last built
}

// partitionDriftThreshold is how far the live row count may move, as a
// fraction of the count at the last partition build, before the
// coarse index is considered stale (SPEC_FULL.md §9: repartition
// lazily once row count has grown or shrunk by more than 20% since
// the last build, not on every write).
const partitionDriftThreshold = 0.2

// invalidatePartitionsIfDrifted nils the cached coarse index once the
// live row count has drifted past partitionDriftThreshold since
// partitions were last built, letting the next Search rebuild it
// lazily instead of every Upsert/Delete forcing a full recompute.
func (ab *ANNBackend) invalidatePartitionsIfDrifted() {
	if ab.partitions == nil {
		return
	}
	n, err := ab.rowCount()
	if err != nil {
		return
	}
	if ab.lastPartitionRowCount == 0 {
		if n > 0 {
			ab.partitions = nil
		}
		return
	}
	drift := math.Abs(float64(n-ab.lastPartitionRowCount)) / float64(ab.lastPartitionRowCount)
	if drift > partitionDriftThreshold {
		ab.partitions = nil
	}
}

type center struct {
	id  int
	vec []float32
}

// NewANNBackend creates (if absent) the vec0 virtual table named after
// table, storing dimension-wide vectors with auxiliary payload and
// partition_id columns.
func NewANNBackend(db *sql.DB, table string, dimension int, cfg ANNConfig) (*ANNBackend, error) {
	if cfg.MinRowsForIndex <= 0 {
		cfg = DefaultANNConfig()
	}
	schema := fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
	id TEXT PRIMARY KEY,
	embedding FLOAT[%d],
	+payload TEXT,
	+partition_id INTEGER
);`, table, dimension)
	if _, err := db.Exec(schema); err != nil {
		return nil, errs.VectorDB(err, "create vec0 table %s", table)
	}
	return &ANNBackend{db: db, table: table, dimension: dimension, cfg: cfg}, nil
}

func (ab *ANNBackend) Name() string   { return "sqlite-vec-ann" }
func (ab *ANNBackend) Dimension() int { return ab.dimension }

func encodeVector(vec []float32) (string, error) {
	b, err := json.Marshal(vec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Upsert guarantees at-most-one row per id via a best-effort delete
// before insert, since vec0 has no native ON CONFLICT upsert.
func (ab *ANNBackend) Upsert(id string, vec []float32, payload string) error {
	if err := checkDimension(ab.dimension, len(vec)); err != nil {
		return err
	}
	enc, err := encodeVector(vec)
	if err != nil {
		return errs.VectorDB(err, "encode vector for %s", id)
	}

	ab.mu.Lock()
	defer ab.mu.Unlock()

	if _, err := ab.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, ab.table), id); err != nil {
		return errs.VectorDB(err, "delete existing row for %s", id)
	}
	partitionID := ab.assignPartition(vec)
	if _, err := ab.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, embedding, payload, partition_id) VALUES (?, ?, ?, ?)`, ab.table),
		id, enc, payload, partitionID,
	); err != nil {
		return errs.VectorDB(err, "insert vector for %s", id)
	}
	ab.invalidatePartitionsIfDrifted()
	return nil
}

// Delete removes id's row, if present.
func (ab *ANNBackend) Delete(id string) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if _, err := ab.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, ab.table), id); err != nil {
		return errs.VectorDB(err, "delete vector for %s", id)
	}
	ab.invalidatePartitionsIfDrifted()
	return nil
}

// Search probes the lazily-built partition index (once row count
// crosses MinRowsForIndex) or falls back to a full scan, scores every
// fetched row by exact distance and returns the best k. RefineFactor
// does not cap how many rows are fetched from the probed partitions.
func (ab *ANNBackend) Search(vec []float32, k int) ([]Match, error) {
	if err := checkDimension(ab.dimension, len(vec)); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}

	rowCount, err := ab.rowCount()
	if err != nil {
		return nil, err
	}

	useIndex := ab.cfg.AnnKind != "ivfflat" && ab.cfg.AnnKind != "off" && rowCount >= ab.cfg.MinRowsForIndex
	fetchLimit := k
	if ab.cfg.RefineFactor > 1 {
		fetchLimit = k * ab.cfg.RefineFactor
	}

	var rows *sql.Rows
	if useIndex {
		rows, err = ab.searchPartitioned(vec, fetchLimit)
	} else {
		rows, err = ab.db.Query(fmt.Sprintf(`SELECT id, embedding, payload FROM %s`, ab.table))
	}
	if err != nil {
		return nil, errs.VectorDB(err, "search vec0 table %s", ab.table)
	}
	defer rows.Close()

	var candidates []Match
	for rows.Next() {
		var id, encoded string
		var payload sql.NullString
		if err := rows.Scan(&id, &encoded, &payload); err != nil {
			return nil, errs.VectorDB(err, "scan vec0 row")
		}
		stored, err := decodeVector(encoded)
		if err != nil {
			continue
		}
		candidates = append(candidates, Match{
			ID:      id,
			Score:   ab.score(vec, stored),
			Payload: payload.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.VectorDB(err, "iterate vec0 rows")
	}

	return topK(candidates, k), nil
}

func decodeVector(encoded string) ([]float32, error) {
	var vec []float32
	err := json.Unmarshal([]byte(encoded), &vec)
	if err == nil {
		return vec, nil
	}
	// vec0 returns stored vectors as raw little-endian float32 blobs.
	if len(encoded) == 0 || len(encoded)%4 != 0 {
		return nil, err
	}
	vec = make([]float32, len(encoded)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(encoded[i*4 : i*4+4])))
	}
	return vec, nil
}

func (ab *ANNBackend) score(query, stored []float32) float64 {
	switch ab.cfg.Metric {
	case MetricL2:
		dist := l2Distance(query, stored)
		return 1 / (1 + math.Max(0, dist))
	case MetricDot:
		return dot(query, stored)
	default:
		return cosine(query, stored)
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func l2Distance(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return math.Sqrt(s)
}

func (ab *ANNBackend) rowCount() (int, error) {
	var n int
	if err := ab.db.QueryRow(fmt.Sprintf(`SELECT count(*) FROM %s`, ab.table)).Scan(&n); err != nil {
		return 0, errs.VectorDB(err, "count rows in %s", ab.table)
	}
	return n, nil
}

// ensurePartitions builds nlist = ceil(sqrt(row_count)) coarse
// centroids via a lightweight fixed-iteration k-means over every stored
// vector, assigning each existing row its nearest centroid.
func (ab *ANNBackend) ensurePartitions() error {
	if ab.partitions != nil {
		return nil
	}
	rows, err := ab.db.Query(fmt.Sprintf(`SELECT id, embedding FROM %s`, ab.table))
	if err != nil {
		return errs.VectorDB(err, "load vectors for partitioning")
	}
	defer rows.Close()

	var ids []string
	var vecs [][]float32
	for rows.Next() {
		var id, encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			return errs.VectorDB(err, "scan vector for partitioning")
		}
		v, err := decodeVector(encoded)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	if err := rows.Err(); err != nil {
		return errs.VectorDB(err, "iterate vectors for partitioning")
	}
	if len(vecs) == 0 {
		ab.partitions = []center{}
		ab.lastPartitionRowCount = 0
		return nil
	}

	nlist := int(math.Ceil(math.Sqrt(float64(len(vecs)))))
	if nlist < 1 {
		nlist = 1
	}
	if nlist > len(vecs) {
		nlist = len(vecs)
	}

	centers := kmeans(vecs, nlist)
	assignments := make([]int, len(vecs))
	for i, v := range vecs {
		assignments[i] = nearestCenter(v, centers)
	}

	tx, err := ab.db.Begin()
	if err != nil {
		return errs.VectorDB(err, "begin partition update")
	}
	defer tx.Rollback()
	for i, id := range ids {
		if _, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET partition_id = ? WHERE id = ?`, ab.table),
			assignments[i], id); err != nil {
			return errs.VectorDB(err, "assign partition for %s", id)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.VectorDB(err, "commit partition update")
	}

	out := make([]center, len(centers))
	for i, c := range centers {
		out[i] = center{id: i, vec: c}
	}
	ab.partitions = out
	ab.lastPartitionRowCount = len(vecs)
	return nil
}

func (ab *ANNBackend) assignPartition(vec []float32) int {
	if ab.partitions == nil {
		return 0
	}
	return nearestCenter(vec, centersOf(ab.partitions))
}

func centersOf(cs []center) [][]float32 {
	out := make([][]float32, len(cs))
	for i, c := range cs {
		out[i] = c.vec
	}
	return out
}

func nearestCenter(v []float32, centers [][]float32) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centers {
		d := l2Distance(v, c)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// kmeans runs a small, deterministic, fixed-iteration-count k-means
// over vectors, seeded by evenly-spaced samples (not randomly, to keep
// partition assignment deterministic given the same corpus).
func kmeans(vectors [][]float32, k int) [][]float32 {
	dim := len(vectors[0])
	centers := make([][]float32, k)
	step := len(vectors) / k
	if step < 1 {
		step = 1
	}
	for i := 0; i < k; i++ {
		idx := (i * step) % len(vectors)
		c := make([]float32, dim)
		copy(c, vectors[idx])
		centers[i] = c
	}

	for iter := 0; iter < 8; iter++ {
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for _, v := range vectors {
			ci := nearestCenter(v, centers)
			counts[ci]++
			for d := 0; d < dim; d++ {
				sums[ci][d] += float64(v[d])
			}
		}
		for i := 0; i < k; i++ {
			if counts[i] == 0 {
				continue
			}
			nc := make([]float32, dim)
			for d := 0; d < dim; d++ {
				nc[d] = float32(sums[i][d] / float64(counts[i]))
			}
			centers[i] = nc
		}
	}
	return centers
}

// searchPartitioned ensures the coarse index exists, picks the
// NProbes nearest partitions to vec, and returns rows restricted to
// those partitions.
func (ab *ANNBackend) searchPartitioned(vec []float32, fetchLimit int) (*sql.Rows, error) {
	if err := ab.ensurePartitions(); err != nil {
		return nil, err
	}
	if len(ab.partitions) == 0 {
		return ab.db.Query(fmt.Sprintf(`SELECT id, embedding, payload FROM %s`, ab.table))
	}

	type scored struct {
		id   int
		dist float64
	}
	ranked := make([]scored, len(ab.partitions))
	for i, c := range ab.partitions {
		ranked[i] = scored{id: c.id, dist: l2Distance(vec, c.vec)}
	}
	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].dist < ranked[i].dist {
				ranked[i], ranked[j] = ranked[j], ranked[i]
			}
		}
	}
	nprobes := ab.cfg.NProbes
	if nprobes <= 0 {
		nprobes = 1
	}
	if nprobes > len(ranked) {
		nprobes = len(ranked)
	}

	placeholders := ""
	args := make([]any, 0, nprobes)
	for i := 0; i < nprobes; i++ {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, ranked[i].id)
	}
	q := fmt.Sprintf(`SELECT id, embedding, payload FROM %s WHERE partition_id IN (%s)`, ab.table, placeholders)
	return ab.db.Query(q, args...)
}
