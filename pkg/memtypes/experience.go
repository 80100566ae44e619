package memtypes

import (
	"time"

	"github.com/kittclouds/memengine/internal/idgen"
)

// Experience is a named, time-bounded grouping of memories created
// during a session (an "episode").
type Experience struct {
	ID         string
	Title      string
	Context    string
	StartedAt  time.Time
	EndedAt    *time.Time
	MemoryIDs  []string
	Importance float64
}

// NewExperience opens an episode.
func NewExperience(title, context string, now time.Time) *Experience {
	return &Experience{
		ID:        idgen.New(),
		Title:     title,
		Context:   context,
		StartedAt: now,
	}
}

// IsOpen reports whether the episode has not yet been closed.
func (e *Experience) IsOpen() bool { return e.EndedAt == nil }

// AddMemory links a memory id to this episode, idempotently.
func (e *Experience) AddMemory(memoryID string) {
	for _, id := range e.MemoryIDs {
		if id == memoryID {
			return
		}
	}
	e.MemoryIDs = append(e.MemoryIDs, memoryID)
}

// MemorySummary is a consolidated summary of a cohort of older,
// low-importance memories of the same type, produced by maintenance
// consolidation (SPEC_FULL.md §4.J).
type MemorySummary struct {
	ID                string
	Text              string
	OriginalMemoryIDs []string
	MemoryType        MemoryType
	CreatedAt         time.Time
	Importance        float64
}

// NewMemorySummary constructs a summary record; importance defaults to
// 0.5 per the reference consolidation behavior.
func NewMemorySummary(text string, originalIDs []string, memoryType MemoryType, now time.Time) *MemorySummary {
	return &MemorySummary{
		ID:                idgen.New(),
		Text:              text,
		OriginalMemoryIDs: originalIDs,
		MemoryType:        memoryType,
		CreatedAt:         now,
		Importance:        0.5,
	}
}

// WorkingMemoryItem is an ephemeral, non-persisted reference held by
// the working-memory active set.
type WorkingMemoryItem struct {
	MemoryID        string
	ContentSnapshot string
	Type            MemoryType
	AccessedAt      time.Time
	Attention       float64
	ExpiresAt       *time.Time
	Pinned          bool
}

// Expired reports whether the item's TTL has passed as of now.
func (w *WorkingMemoryItem) Expired(now time.Time) bool {
	return w.ExpiresAt != nil && now.After(*w.ExpiresAt)
}
