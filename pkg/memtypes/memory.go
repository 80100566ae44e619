package memtypes

import (
	"time"

	"github.com/kittclouds/memengine/internal/idgen"
)

// Memory is a single node in the memory graph: a piece of knowledge
// with a type, importance, confidence and access bookkeeping.
type Memory struct {
	ID              string
	Content         string
	MemoryType      MemoryType
	Importance      float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastAccessedAt  time.Time
	AccessCount     int64
	Source          string
	SessionID       string
	Forgotten       bool
	Metadata        map[string]any
	Confidence      Confidence
}

// NewMemory constructs a Memory with type-derived default importance
// and neutral confidence, per SPEC_FULL.md §3.
func NewMemory(content string, memoryType MemoryType, now time.Time) *Memory {
	return &Memory{
		ID:             idgen.New(),
		Content:        content,
		MemoryType:     memoryType,
		Importance:     memoryType.DefaultImportance(),
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		Confidence:     NewConfidence(now),
	}
}

// WithImportance clamps and sets a custom importance.
func (m *Memory) WithImportance(importance float64) *Memory {
	m.Importance = clamp01(importance)
	return m
}

// WithSource sets the provenance string.
func (m *Memory) WithSource(source string) *Memory {
	m.Source = source
	return m
}

// WithSessionID scopes the memory to a session/channel.
func (m *Memory) WithSessionID(sessionID string) *Memory {
	m.SessionID = sessionID
	return m
}

// WithMetadata attaches free-form structured metadata.
func (m *Memory) WithMetadata(metadata map[string]any) *Memory {
	m.Metadata = metadata
	return m
}

// WithConfidenceSource seeds confidence from a known source tier.
func (m *Memory) WithConfidenceSource(reliability SourceReliability, now time.Time) *Memory {
	m.Confidence = NewConfidenceFromSource(reliability, now)
	return m
}

// IsPermanent reports whether this memory should never decay: Identity
// memories, or any memory whose importance has reached near-maximum.
func (m *Memory) IsPermanent() bool {
	return m.MemoryType == Identity || m.Importance >= 0.95
}

// RecordAccess bumps the access counter and timestamp.
func (m *Memory) RecordAccess(now time.Time) {
	m.AccessCount++
	m.LastAccessedAt = now
}
