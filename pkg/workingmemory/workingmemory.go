// Package workingmemory implements a bounded, attention-decayed active
// set of recently or deliberately surfaced memories (SPEC_FULL.md
// §4.G). It is process-local and never persisted; it exists to keep a
// small, ranked working set cheaply available to a context builder
// without re-querying the graph store on every turn.
package workingmemory

import (
	"sort"
	"sync"
	"time"

	"github.com/kittclouds/memengine/pkg/memtypes"
)

const (
	defaultMaxItems   = 20
	attentionBump     = 0.1
	attentionDecay    = 0.95
	attentionEvictAt  = 0.1
	maxAttention      = 1.0
)

// Set is the bounded active set. Guarded by a single-writer/
// multi-reader lock, following the teacher's sync.RWMutex-guarded
// store idiom: reads snapshot under a shared lock, writes take the
// exclusive lock.
type Set struct {
	mu       sync.RWMutex
	maxItems int
	items    map[string]*memtypes.WorkingMemoryItem
}

// New creates an active set bounded to maxItems (defaulting to 20 when
// maxItems <= 0).
func New(maxItems int) *Set {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &Set{
		maxItems: maxItems,
		items:    make(map[string]*memtypes.WorkingMemoryItem),
	}
}

// Remember inserts a memory into the active set, or refreshes it if
// already present: bumps attention by +0.1 (capped at 1.0), refreshes
// accessed_at, updates the content snapshot, and keeps the pinned
// flag. ttl of zero means no expiry.
func (s *Set) Remember(m *memtypes.Memory, ttl time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	if existing, ok := s.items[m.ID]; ok {
		existing.ContentSnapshot = m.Content
		existing.Type = m.MemoryType
		existing.AccessedAt = now
		existing.Attention = minF(existing.Attention+attentionBump, maxAttention)
		if expiresAt != nil {
			existing.ExpiresAt = expiresAt
		}
	} else {
		s.items[m.ID] = &memtypes.WorkingMemoryItem{
			MemoryID:        m.ID,
			ContentSnapshot: m.Content,
			Type:            m.MemoryType,
			AccessedAt:      now,
			Attention:       maxAttention,
			ExpiresAt:       expiresAt,
		}
	}

	s.cleanup(now)
}

// Focus sets attention to 1.0 and refreshes accessed_at for an item
// already in the set. A no-op if the id is absent.
func (s *Set) Focus(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.Attention = maxAttention
		item.AccessedAt = now
	}
}

// Pin marks an item as pinned: pinned items never decay and are never
// evicted by capacity.
func (s *Set) Pin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.Pinned = true
	}
}

// Unpin clears an item's pinned flag.
func (s *Set) Unpin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.Pinned = false
	}
}

// GetContext returns the live (non-expired) items, pinned first, then
// by attention descending.
func (s *Set) GetContext(now time.Time) []memtypes.WorkingMemoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memtypes.WorkingMemoryItem, 0, len(s.items))
	for _, item := range s.items {
		if item.Expired(now) && !item.Pinned {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if out[i].Attention != out[j].Attention {
			return out[i].Attention > out[j].Attention
		}
		return out[i].MemoryID < out[j].MemoryID
	})
	return out
}

// Decay drops expired non-pinned items, multiplies unpinned attention
// by 0.95, and drops items whose attention falls to or below 0.1
// unless pinned.
func (s *Set) Decay(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range s.items {
		if item.Pinned {
			continue
		}
		if item.Expired(now) {
			delete(s.items, id)
			continue
		}
		item.Attention *= attentionDecay
		if item.Attention <= attentionEvictAt {
			delete(s.items, id)
		}
	}
}

// Remove drops an item from the active set unconditionally.
func (s *Set) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Len reports the current item count.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// cleanup drops expired non-pinned items and trims to
// max(maxItems, pinnedCount), evicting the lowest-attention unpinned
// items first. Callers must hold the write lock.
func (s *Set) cleanup(now time.Time) {
	pinnedCount := 0
	for id, item := range s.items {
		if item.Pinned {
			pinnedCount++
			continue
		}
		if item.Expired(now) {
			delete(s.items, id)
		}
	}

	limit := s.maxItems
	if pinnedCount > limit {
		limit = pinnedCount
	}
	if len(s.items) <= limit {
		return
	}

	type ranked struct {
		id        string
		attention float64
	}
	var unpinned []ranked
	for id, item := range s.items {
		if item.Pinned {
			continue
		}
		unpinned = append(unpinned, ranked{id, item.Attention})
	}
	sort.Slice(unpinned, func(i, j int) bool {
		return unpinned[i].attention < unpinned[j].attention
	})

	excess := len(s.items) - limit
	for i := 0; i < excess && i < len(unpinned); i++ {
		delete(s.items, unpinned[i].id)
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
