package memtypes

import (
	"time"

	"github.com/kittclouds/memengine/internal/idgen"
)

// Association is a directed, typed, weighted edge between two
// memories. (source_id, target_id, relation) is unique; re-creating an
// edge updates its weight rather than duplicating it.
type Association struct {
	ID         string
	SourceID   string
	TargetID   string
	Relation   RelationType
	Weight     float64
	CreatedAt  time.Time
}

// NewAssociation constructs an association with the default weight of
// 0.5, matching the reference constructor.
func NewAssociation(sourceID, targetID string, relation RelationType, now time.Time) *Association {
	return &Association{
		ID:        idgen.New(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Relation:  relation,
		Weight:    0.5,
		CreatedAt: now,
	}
}

// WithWeight clamps and sets a custom weight.
func (a *Association) WithWeight(weight float64) *Association {
	a.Weight = clamp01(weight)
	return a
}
