// Package episodic manages the process-local "current episode"
// lifecycle and the persisted Experience records it opens and closes
// (SPEC_FULL.md §4.H).
package episodic

import (
	"sync"
	"time"

	"github.com/kittclouds/memengine/pkg/memtypes"
)

// Store is the persistence surface episodic needs from the graph
// store, kept narrow so this package doesn't depend on internal/store
// directly.
type Store interface {
	SaveExperience(e *memtypes.Experience) error
	LinkMemoryToExperience(experienceID, memoryID string, now int64) error
	LoadExperience(id string) (*memtypes.Experience, error)
}

// ImportanceFunc computes a memory's dynamic importance, used to
// recompute an episode's importance as the mean over its memories when
// it closes.
type ImportanceFunc func(m *memtypes.Memory) float64

// LoadMemoryFunc loads a memory by id.
type LoadMemoryFunc func(id string) (*memtypes.Memory, error)

// Manager tracks the single current episode for a process.
type Manager struct {
	store       Store
	loadMemory  LoadMemoryFunc
	dynamicImp  ImportanceFunc

	mu      sync.Mutex
	current *memtypes.Experience
}

// NewManager wires a Manager against the given store and the
// importance/load callbacks end_episode needs to recompute an episode's
// final importance.
func NewManager(store Store, loadMemory LoadMemoryFunc, dynamicImportance ImportanceFunc) *Manager {
	return &Manager{store: store, loadMemory: loadMemory, dynamicImp: dynamicImportance}
}

// StartEpisode opens a new episode, closing whatever episode was
// already current first (end=now, importance recomputed).
func (m *Manager) StartEpisode(title, context string, now time.Time) (*memtypes.Experience, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.IsOpen() {
		if err := m.closeLocked(now); err != nil {
			return nil, err
		}
	}

	exp := memtypes.NewExperience(title, context, now)
	if err := m.store.SaveExperience(exp); err != nil {
		return nil, err
	}
	m.current = exp
	return exp, nil
}

// EndEpisode closes the current episode, recomputing its importance as
// the mean dynamic importance of its linked memories, and clears the
// current-episode pointer. A no-op returning nil if no episode is open.
func (m *Manager) EndEpisode(now time.Time) (*memtypes.Experience, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || !m.current.IsOpen() {
		return nil, nil
	}
	if err := m.closeLocked(now); err != nil {
		return nil, err
	}
	closed := m.current
	m.current = nil
	return closed, nil
}

// closeLocked performs the actual close + importance recompute + save.
// Callers must hold m.mu.
func (m *Manager) closeLocked(now time.Time) error {
	exp := m.current
	endedAt := now
	exp.EndedAt = &endedAt

	if len(exp.MemoryIDs) > 0 && m.loadMemory != nil && m.dynamicImp != nil {
		var sum float64
		var n int
		for _, id := range exp.MemoryIDs {
			mem, err := m.loadMemory(id)
			if err != nil {
				return err
			}
			if mem == nil {
				continue
			}
			sum += m.dynamicImp(mem)
			n++
		}
		if n > 0 {
			exp.Importance = sum / float64(n)
		}
	}

	return m.store.SaveExperience(exp)
}

// Current returns the currently open episode, or nil if none is open.
func (m *Manager) Current() *memtypes.Experience {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || !m.current.IsOpen() {
		return nil
	}
	return m.current
}

// LinkMemory records that memoryID belongs to the current episode, if
// one is open. A no-op if no episode is open (remember() calls this
// unconditionally; it is fine for it to do nothing).
func (m *Manager) LinkMemory(memoryID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || !m.current.IsOpen() {
		return nil
	}
	if err := m.store.LinkMemoryToExperience(m.current.ID, memoryID, now.Unix()); err != nil {
		return err
	}
	m.current.AddMemory(memoryID)
	return nil
}

// Load fetches a past episode (open or closed) by id.
func (m *Manager) Load(id string) (*memtypes.Experience, error) {
	return m.store.LoadExperience(id)
}
