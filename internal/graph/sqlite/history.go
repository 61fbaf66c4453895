// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/strata-dev/strata/internal/graph"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// GetEntityHistory returns every version ever recorded for the named entity,
// ordered by version descending. History is complete and immutable: no
// validity filtering. An unknown name yields an empty slice.
func (s *Store) GetEntityHistory(ctx context.Context, name string) ([]*graph.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE name = ? ORDER BY version DESC`
	return queryEntities(ctx, s.db, query, name)
}

// GetRelationHistory returns every version ever recorded for the identified
// relation, ordered by version descending.
func (s *Store) GetRelationHistory(ctx context.Context, from, to string, relType graph.RelationType) ([]*graph.Relation, error) {
	query := `SELECT ` + relationColumns + ` FROM relations
WHERE from_name = ? AND to_name = ? AND relation_type = ? ORDER BY version DESC`
	return queryRelations(ctx, s.db, query, from, to, string(relType))
}

// GetGraphAtTime reconstructs the graph as of ts: every entity and relation
// whose validity interval covers the instant, including rows later superseded
// or soft-deleted. A timestamp before any data yields an empty graph.
func (s *Store) GetGraphAtTime(ctx context.Context, ts time.Time) (*graph.Graph, error) {
	ms := ts.UnixMilli()

	entQuery := `SELECT ` + entityColumns + ` FROM entities
WHERE valid_from <= ? AND (valid_to IS NULL OR valid_to > ?) ORDER BY name`
	entities, err := queryEntities(ctx, s.db, entQuery, ms, ms)
	if err != nil {
		return nil, err
	}

	relQuery := `SELECT ` + relationColumns + ` FROM relations
WHERE valid_from <= ? AND (valid_to IS NULL OR valid_to > ?) ORDER BY from_name, to_name`
	relations, err := queryRelations(ctx, s.db, relQuery, ms, ms)
	if err != nil {
		return nil, err
	}

	return &graph.Graph{Entities: entities, Relations: relations}, nil
}

// ReadGraph returns all current entities and relations.
func (s *Store) ReadGraph(ctx context.Context) (*graph.Graph, error) {
	entities, err := queryEntities(ctx, s.db,
		`SELECT `+entityColumns+` FROM entities WHERE valid_to IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}

	relations, err := queryRelations(ctx, s.db,
		`SELECT `+relationColumns+` FROM relations WHERE valid_to IS NULL ORDER BY from_name, to_name`)
	if err != nil {
		return nil, err
	}

	return &graph.Graph{Entities: entities, Relations: relations}, nil
}

// OpenNodes returns the current versions of the named entities plus the
// current relations whose endpoints are both in the set. Unknown names are
// omitted, not an error.
func (s *Store) OpenNodes(ctx context.Context, names []string) (*graph.Graph, error) {
	if len(names) == 0 {
		return &graph.Graph{Entities: []*graph.Entity{}, Relations: []*graph.Relation{}}, nil
	}

	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}

	entQuery := `SELECT ` + entityColumns + ` FROM entities
WHERE valid_to IS NULL AND name IN (` + placeholders + `) ORDER BY name`
	entities, err := queryEntities(ctx, s.db, entQuery, args...)
	if err != nil {
		return nil, err
	}

	relQuery := `SELECT ` + relationColumns + ` FROM relations
WHERE valid_to IS NULL AND from_name IN (` + placeholders + `) AND to_name IN (` + placeholders + `)
ORDER BY from_name, to_name`
	relArgs := make([]any, 0, len(names)*2)
	relArgs = append(relArgs, args...)
	relArgs = append(relArgs, args...)
	relations, err := queryRelations(ctx, s.db, relQuery, relArgs...)
	if err != nil {
		return nil, err
	}

	return &graph.Graph{Entities: entities, Relations: relations}, nil
}

// SearchNodes returns current entities lexically matching the query across
// name, type, and observations, plus the current relations connecting the
// matched set.
func (s *Store) SearchNodes(ctx context.Context, query string) (*graph.Graph, error) {
	all, err := queryEntities(ctx, s.db,
		`SELECT `+entityColumns+` FROM entities WHERE valid_to IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}

	matched := make([]*graph.Entity, 0, len(all))
	names := make([]string, 0, len(all))
	for _, e := range all {
		if lexicalScore(e, query) > 0 {
			matched = append(matched, e)
			names = append(names, e.Name)
		}
	}
	if len(matched) == 0 {
		return &graph.Graph{Entities: []*graph.Entity{}, Relations: []*graph.Relation{}}, nil
	}

	sub, err := s.OpenNodes(ctx, names)
	if err != nil {
		return nil, err
	}
	return &graph.Graph{Entities: matched, Relations: sub.Relations}, nil
}

// GetDecayedGraph returns the current graph with each relation's confidence
// replaced by its decayed value as of now. Decay is a view: stored rows are
// untouched and entities pass through unchanged.
func (s *Store) GetDecayedGraph(ctx context.Context) (*graph.Graph, error) {
	g, err := s.ReadGraph(ctx)
	if err != nil {
		return nil, err
	}

	ref := s.now()
	decayed := make([]*graph.Relation, len(g.Relations))
	for i, r := range g.Relations {
		dr := *r
		dr.Confidence = graph.DecayedConfidence(r, ref, s.decay)
		decayed[i] = &dr
	}
	g.Relations = decayed
	return g, nil
}

func queryEntities(ctx context.Context, q querier, query string, args ...any) ([]*graph.Entity, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "querying entities")
	}
	defer func() { _ = rows.Close() }()

	entities := []*graph.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "iterating entity rows")
	}
	return entities, nil
}

func queryRelations(ctx context.Context, q querier, query string, args ...any) ([]*graph.Relation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "querying relations")
	}
	defer func() { _ = rows.Close() }()

	relations := []*graph.Relation{}
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "iterating relation rows")
	}
	return relations, nil
}
