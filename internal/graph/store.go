// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package graph

import (
	"context"
	"time"
)

// Store is the temporal entity/relation store: mutations and current-state
// reads with append-only version history. All mutations run inside a single
// transaction; batches are all-or-nothing.
type Store interface {
	// CreateEntities inserts version 1 for each input entity. Fails with an
	// entity-exists conflict if any name already has a current version; the
	// whole batch rolls back on any failure.
	CreateEntities(ctx context.Context, entities []*Entity) ([]*Entity, error)

	// AddObservations appends observation contents to the named entity,
	// producing a new version. Fails when no current version exists.
	AddObservations(ctx context.Context, name string, contents []string) (*Entity, error)

	// DeleteObservations removes matching observation contents from the named
	// entity, producing a new version. Fails when no current version exists.
	DeleteObservations(ctx context.Context, name string, contents []string) (*Entity, error)

	// DeleteEntities soft-deletes the named entities and, in the same
	// transaction, closes every current relation touching them. Their
	// embeddings are removed as well.
	DeleteEntities(ctx context.Context, names []string) error

	// GetEntity returns the current version of the named entity, or nil when
	// none exists.
	GetEntity(ctx context.Context, name string) (*Entity, error)

	// CreateRelations inserts version 1 for each input relation,
	// all-or-nothing. Endpoints must exist at commit time.
	CreateRelations(ctx context.Context, relations []*Relation) ([]*Relation, error)

	// UpdateRelation closes the current version of the relation identified by
	// (from, to, relationType) and inserts a successor carrying the new
	// strength, confidence, and metadata. Fails when no current version exists.
	UpdateRelation(ctx context.Context, relation *Relation) (*Relation, error)

	// DeleteRelations soft-deletes the identified relations. No cascade.
	DeleteRelations(ctx context.Context, keys []RelationKey) error

	// GetRelation returns the current version of the identified relation, or
	// nil when none exists.
	GetRelation(ctx context.Context, from, to string, relType RelationType) (*Relation, error)

	// GetEntityHistory returns every version ever recorded for the named
	// entity, most recent version first. Empty when the name is unknown.
	GetEntityHistory(ctx context.Context, name string) ([]*Entity, error)

	// GetRelationHistory returns every version ever recorded for the
	// identified relation, most recent version first.
	GetRelationHistory(ctx context.Context, from, to string, relType RelationType) ([]*Relation, error)

	// GetGraphAtTime reconstructs the graph as of ts: rows whose validity
	// interval covers the instant. A timestamp before any data yields an
	// empty graph.
	GetGraphAtTime(ctx context.Context, ts time.Time) (*Graph, error)

	// ReadGraph returns all current entities and relations.
	ReadGraph(ctx context.Context) (*Graph, error)

	// OpenNodes returns the current versions of the named entities plus the
	// current relations connecting them. Unknown names are omitted.
	OpenNodes(ctx context.Context, names []string) (*Graph, error)

	// SearchNodes returns current entities lexically matching the query
	// (name, type, observations) plus the relations connecting them.
	SearchNodes(ctx context.Context, query string) (*Graph, error)

	// GetDecayedGraph returns the current graph with every relation's
	// confidence replaced by its decayed value as of now. Stored rows are
	// not mutated; entities are returned unchanged.
	GetDecayedGraph(ctx context.Context) (*Graph, error)

	VectorIndex

	// Reset drops and recreates the schema. Maintenance and tests only.
	Reset(ctx context.Context) error

	Close() error
}

// VectorIndex stores one embedding per entity and ranks entities by
// similarity to a query vector, optionally blended with lexical matching.
type VectorIndex interface {
	// StoreEntityVector validates the vector dimension and upserts the
	// embedding and its metadata row in one transaction.
	StoreEntityVector(ctx context.Context, entityName string, vector []float32) error

	// GetEntityEmbedding returns the stored vector, or nil when none exists.
	GetEntityEmbedding(ctx context.Context, entityName string) ([]float32, error)

	// DeleteEntityEmbedding removes the entity's vector and metadata rows.
	// A missing embedding is not an error.
	DeleteEntityEmbedding(ctx context.Context, entityName string) error

	// FindSimilarEntities returns current entities with
	// 1 - cosineDistance >= minSimilarity, ordered by similarity descending,
	// truncated to limit.
	FindSimilarEntities(ctx context.Context, queryVector []float32, limit int, minSimilarity float64) ([]*ScoredEntity, error)

	// HybridSearch blends vector similarity with lexical matching:
	// score = semanticWeight*similarity + (1-semanticWeight)*lexical.
	// A nil queryVector degrades to lexical-only ranking.
	HybridSearch(ctx context.Context, query string, queryVector []float32, limit int) ([]*ScoredEntity, error)
}
