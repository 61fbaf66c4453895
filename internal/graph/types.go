// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package graph defines the temporal knowledge-graph data model: versioned
// entities and relations, point-in-time snapshots, and confidence decay.
package graph

import "time"

// EntityType is the closed enumeration of entity kinds.
type EntityType string

const (
	EntityTypeFeature   EntityType = "feature"
	EntityTypeTask      EntityType = "task"
	EntityTypeDecision  EntityType = "decision"
	EntityTypeComponent EntityType = "component"
	EntityTypeTest      EntityType = "test"
)

// EntityTypes lists all valid entity types.
var EntityTypes = []EntityType{
	EntityTypeFeature,
	EntityTypeTask,
	EntityTypeDecision,
	EntityTypeComponent,
	EntityTypeTest,
}

// RelationType is the closed enumeration of relation kinds.
type RelationType string

const (
	RelationTypeImplements RelationType = "implements"
	RelationTypeDependsOn  RelationType = "depends_on"
	RelationTypeRelatesTo  RelationType = "relates_to"
	RelationTypePartOf     RelationType = "part_of"
)

// RelationTypes lists all valid relation types.
var RelationTypes = []RelationType{
	RelationTypeImplements,
	RelationTypeDependsOn,
	RelationTypeRelatesTo,
	RelationTypePartOf,
}

// Entity is one version row of a logical entity. The logical entity is
// identified by Name; ID is the identity of this particular version row.
// A nil ValidTo marks the current version.
type Entity struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	EntityType   EntityType `json:"entityType"`
	Observations []string   `json:"observations"`
	Version      int64      `json:"version"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ValidFrom    time.Time  `json:"validFrom"`
	ValidTo      *time.Time `json:"validTo,omitempty"`
	ChangedBy    string     `json:"changedBy,omitempty"`
}

// Current reports whether this row is the current version.
func (e *Entity) Current() bool { return e.ValidTo == nil }

// Relation is one version row of a logical relation. The logical relation is
// identified by (From, To, RelationType). FromID and ToID pin the entity
// version rows that existed when this relation version was written, so an
// entity soft delete can close its relations in the same transaction.
type Relation struct {
	ID           int64          `json:"id"`
	From         string         `json:"from"`
	To           string         `json:"to"`
	FromID       int64          `json:"-"`
	ToID         int64          `json:"-"`
	RelationType RelationType   `json:"relationType"`
	Strength     float64        `json:"strength"`
	Confidence   float64        `json:"confidence"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	ValidFrom    time.Time      `json:"validFrom"`
	ValidTo      *time.Time     `json:"validTo,omitempty"`
	ChangedBy    string         `json:"changedBy,omitempty"`
}

// Current reports whether this row is the current version.
func (r *Relation) Current() bool { return r.ValidTo == nil }

// Key returns the logical identity of the relation.
func (r *Relation) Key() RelationKey {
	return RelationKey{From: r.From, To: r.To, RelationType: r.RelationType}
}

// RelationKey identifies a logical relation.
type RelationKey struct {
	From         string       `json:"from"`
	To           string       `json:"to"`
	RelationType RelationType `json:"relationType"`
}

// Graph is a consistent view over a set of entities and relations, either the
// current state or a reconstruction as of some past instant.
type Graph struct {
	Entities  []*Entity   `json:"entities"`
	Relations []*Relation `json:"relations"`
}

// ScoredEntity is a search result: a current entity plus its ranking score.
// For vector search Score is cosine similarity in [0,1]; for hybrid search it
// is the blended semantic/lexical score.
type ScoredEntity struct {
	Entity *Entity `json:"entity"`
	Score  float64 `json:"score"`
}
