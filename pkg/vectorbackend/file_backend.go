package vectorbackend

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/kittclouds/memengine/internal/errs"
)

// FileBackend stores one fixed-width binary file per id under dir and
// answers Search with a brute-force cosine scan. Adequate for small
// corpora; it trades index-build cost for simplicity.
type FileBackend struct {
	dir       string
	dimension int

	mu       sync.RWMutex
	payloads map[string]string
}

// NewFileBackend creates (if absent) dir and returns a backend storing
// dimension-wide float32 vectors there.
func NewFileBackend(dir string, dimension int) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.VectorDB(err, "create vector file dir %s", dir)
	}
	fb := &FileBackend{dir: dir, dimension: dimension, payloads: make(map[string]string)}
	if err := fb.loadPayloads(); err != nil {
		return nil, err
	}
	return fb, nil
}

func (fb *FileBackend) Name() string   { return "file" }
func (fb *FileBackend) Dimension() int { return fb.dimension }

func (fb *FileBackend) vecPath(id string) string {
	return filepath.Join(fb.dir, id+".vec")
}

func (fb *FileBackend) payloadPath(id string) string {
	return filepath.Join(fb.dir, id+".payload")
}

// Upsert writes vec to id's file, overwriting any prior vector.
func (fb *FileBackend) Upsert(id string, vec []float32, payload string) error {
	if err := checkDimension(fb.dimension, len(vec)); err != nil {
		return err
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if err := os.WriteFile(fb.vecPath(id), buf, 0o644); err != nil {
		return errs.VectorDB(err, "write vector file for %s", id)
	}
	if payload != "" {
		if err := os.WriteFile(fb.payloadPath(id), []byte(payload), 0o644); err != nil {
			return errs.VectorDB(err, "write payload file for %s", id)
		}
		fb.payloads[id] = payload
	} else {
		delete(fb.payloads, id)
		_ = os.Remove(fb.payloadPath(id))
	}
	return nil
}

// Delete removes id's vector (and payload, if any) from disk.
func (fb *FileBackend) Delete(id string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	delete(fb.payloads, id)
	_ = os.Remove(fb.payloadPath(id))
	if err := os.Remove(fb.vecPath(id)); err != nil && !os.IsNotExist(err) {
		return errs.VectorDB(err, "delete vector file for %s", id)
	}
	return nil
}

// Search scans every stored vector, ranks by cosine similarity, and
// returns the top k matches.
func (fb *FileBackend) Search(vec []float32, k int) ([]Match, error) {
	if err := checkDimension(fb.dimension, len(vec)); err != nil {
		return nil, err
	}

	fb.mu.RLock()
	defer fb.mu.RUnlock()

	entries, err := os.ReadDir(fb.dir)
	if err != nil {
		return nil, errs.VectorDB(err, "list vector dir %s", fb.dir)
	}

	var matches []Match
	for _, ent := range entries {
		name := ent.Name()
		if filepath.Ext(name) != ".vec" {
			continue
		}
		id := name[:len(name)-len(".vec")]
		stored, err := fb.readVector(id)
		if err != nil {
			continue
		}
		matches = append(matches, Match{
			ID:      id,
			Score:   cosine(vec, stored),
			Payload: fb.payloads[id],
		})
	}
	return topK(matches, k), nil
}

func (fb *FileBackend) readVector(id string) ([]float32, error) {
	data, err := os.ReadFile(fb.vecPath(id))
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, errs.VectorDB(nil, "corrupt vector file for %s", id)
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

func (fb *FileBackend) loadPayloads() error {
	entries, err := os.ReadDir(fb.dir)
	if err != nil {
		return errs.VectorDB(err, "list vector dir %s", fb.dir)
	}
	for _, ent := range entries {
		name := ent.Name()
		if filepath.Ext(name) != ".payload" {
			continue
		}
		id := name[:len(name)-len(".payload")]
		data, err := os.ReadFile(fb.payloadPath(id))
		if err != nil {
			continue
		}
		fb.payloads[id] = string(data)
	}
	return nil
}
