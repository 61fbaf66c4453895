// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"

	"github.com/strata-dev/strata/internal/graph"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// wholeEntityIndex is the observation index used for the single
// entity-level embedding.
const wholeEntityIndex = 0

// StoreEntityVector validates the vector dimension and upserts the embedding
// into the vec0 index and the embedding_metadata side table in one
// transaction.
func (s *Store) StoreEntityVector(ctx context.Context, entityName string, vector []float32) error {
	if entityName == "" {
		return strataerr.New(strataerr.CodeGraphInvalidInput, "entity name must not be empty")
	}
	if len(vector) != s.dimensions {
		return strataerr.Errorf(strataerr.CodeEmbeddingInvalid,
			"vector dimension mismatch: got %d, want %d", len(vector), s.dimensions)
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeEmbeddingInvalid, "serializing embedding")
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Reuse the row identity on upsert so the metadata mapping stays stable.
	var vecID string
	err = tx.QueryRowContext(ctx,
		`SELECT vector_id FROM embedding_metadata WHERE entity_name = ? AND observation_index = ?`,
		entityName, wholeEntityIndex).Scan(&vecID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		vecID = uuid.NewString()
	case err != nil:
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"looking up vector id for %s", entityName)
	}

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, vecID); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"deleting existing vector for %s", entityName)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vectors(id, embedding) VALUES (?, ?)`, vecID, blob); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"inserting vector for %s", entityName)
	}

	const metaQ = `INSERT INTO embedding_metadata(vector_id, entity_name, observation_index) VALUES (?, ?, ?)
ON CONFLICT(entity_name, observation_index) DO UPDATE SET vector_id = excluded.vector_id`
	if _, err := tx.ExecContext(ctx, metaQ, vecID, entityName, wholeEntityIndex); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"upserting embedding metadata for %s", entityName)
	}

	if err := tx.Commit(); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "committing vector store")
	}
	return nil
}

// GetEntityEmbedding returns the stored vector for the entity, or nil when
// none exists.
func (s *Store) GetEntityEmbedding(ctx context.Context, entityName string) ([]float32, error) {
	const q = `SELECT v.embedding FROM vectors v
JOIN embedding_metadata m ON m.vector_id = v.id
WHERE m.entity_name = ? AND m.observation_index = ?`

	var blob []byte
	err := s.db.QueryRowContext(ctx, q, entityName, wholeEntityIndex).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"reading embedding for %s", entityName)
	}
	return decodeVector(blob)
}

// DeleteEntityEmbedding removes the entity's vector and metadata rows.
// Invoked by entity soft delete; a missing embedding is a no-op.
func (s *Store) DeleteEntityEmbedding(ctx context.Context, entityName string) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteEmbeddingRows(ctx, tx, entityName); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "committing embedding delete")
	}
	return nil
}

// deleteEmbeddingRows removes all vector and metadata rows for an entity
// within an existing transaction. Shared with the entity soft-delete cascade.
func deleteEmbeddingRows(ctx context.Context, q querier, entityName string) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM vectors WHERE id IN (SELECT vector_id FROM embedding_metadata WHERE entity_name = ?)`,
		entityName); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"deleting vectors for %s", entityName)
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM embedding_metadata WHERE entity_name = ?`, entityName); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"deleting embedding metadata for %s", entityName)
	}
	return nil
}

// FindSimilarEntities ranks current entities by cosine similarity to the
// query vector. Similarity is 1 - cosineDistance; results below
// minSimilarity are dropped, order is similarity descending, truncated to
// limit. Rows whose entity has been soft-deleted are excluded.
func (s *Store) FindSimilarEntities(ctx context.Context, queryVector []float32, limit int, minSimilarity float64) ([]*graph.ScoredEntity, error) {
	if len(queryVector) != s.dimensions {
		return nil, strataerr.Errorf(strataerr.CodeEmbeddingInvalid,
			"query vector dimension mismatch: got %d, want %d", len(queryVector), s.dimensions)
	}
	if limit <= 0 {
		limit = 10
	}

	sims, err := s.knnSimilarities(ctx, queryVector, limit)
	if err != nil {
		return nil, err
	}

	// knnSimilarities returns rows ordered by ascending distance already;
	// re-sort after clamping to keep ordering well-defined.
	type hit struct {
		name string
		sim  float64
	}
	hits := make([]hit, 0, len(sims))
	for name, sim := range sims {
		if sim < minSimilarity {
			continue
		}
		hits = append(hits, hit{name: name, sim: sim})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].name < hits[j].name
	})

	results := make([]*graph.ScoredEntity, 0, limit)
	for _, h := range hits {
		if len(results) == limit {
			break
		}
		ent, err := s.GetEntity(ctx, h.name)
		if err != nil {
			return nil, err
		}
		if ent == nil {
			// Orphaned vector row for a soft-deleted entity; excluded.
			continue
		}
		results = append(results, &graph.ScoredEntity{Entity: ent, Score: h.sim})
	}
	return results, nil
}

// HybridSearch blends vector similarity with lexical matching over current
// entities: score = semanticWeight*similarity + (1-semanticWeight)*lexical.
// A nil queryVector degrades to a purely lexical ranking; that fallback is
// required behavior, not an error path.
func (s *Store) HybridSearch(ctx context.Context, query string, queryVector []float32, limit int) ([]*graph.ScoredEntity, error) {
	if limit <= 0 {
		limit = 10
	}

	entities, err := queryEntities(ctx, s.db,
		`SELECT `+entityColumns+` FROM entities WHERE valid_to IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}

	var sims map[string]float64
	if queryVector != nil {
		if len(queryVector) != s.dimensions {
			return nil, strataerr.Errorf(strataerr.CodeEmbeddingInvalid,
				"query vector dimension mismatch: got %d, want %d", len(queryVector), s.dimensions)
		}
		sims, err = s.knnSimilarities(ctx, queryVector, limit)
		if err != nil {
			return nil, err
		}
	}

	scored := make([]*graph.ScoredEntity, 0, len(entities))
	for _, e := range entities {
		lex := lexicalScore(e, query)

		var score float64
		if sims == nil {
			score = lex
		} else {
			score = s.semWeight*sims[e.Name] + (1-s.semWeight)*lex
		}
		if score <= 0 {
			continue
		}
		scored = append(scored, &graph.ScoredEntity{Entity: e, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entity.Name < scored[j].Entity.Name
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// knnSimilarities runs a k-nearest-neighbor query against the vec0 index and
// returns entity name -> similarity. k overshoots the caller's limit because
// rows for soft-deleted entities are filtered out afterwards.
func (s *Store) knnSimilarities(ctx context.Context, queryVector []float32, limit int) (map[string]float64, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryVector)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeEmbeddingInvalid, "serializing query vector")
	}

	k := limit * 4
	if k < 64 {
		k = 64
	}

	const q = `SELECT m.entity_name, v.distance
FROM vectors v
JOIN embedding_metadata m ON m.vector_id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	sims := make(map[string]float64)
	for rows.Next() {
		var name string
		var distance float64
		if err := rows.Scan(&name, &distance); err != nil {
			return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "scanning vector result")
		}
		sim := 1.0 - distance
		if sim > 1.0 {
			sim = 1.0
		}
		sims[name] = sim
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "iterating vector results")
	}
	return sims, nil
}

// lexicalScore rates how well an entity matches a text query across its
// name, type, and observations. Scores are in [0,1].
func lexicalScore(e *graph.Entity, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}

	name := strings.ToLower(e.Name)
	if name == q {
		return 1.0
	}

	var score float64
	switch {
	case strings.Contains(name, q):
		score = 0.8
	case strings.Contains(strings.ToLower(strings.Join(e.Observations, " ")), q):
		score = 0.6
	case strings.Contains(strings.ToLower(string(e.EntityType)), q):
		score = 0.5
	}

	// Token overlap catches multi-word queries where no single substring hits.
	tokens := strings.Fields(q)
	if len(tokens) > 1 {
		hay := name + " " + strings.ToLower(string(e.EntityType)) + " " +
			strings.ToLower(strings.Join(e.Observations, " "))
		matched := 0
		for _, t := range tokens {
			if strings.Contains(hay, t) {
				matched++
			}
		}
		if tokenScore := 0.7 * float64(matched) / float64(len(tokens)); tokenScore > score {
			score = tokenScore
		}
	}
	return score
}

// decodeVector reverses sqlite-vec's float32 little-endian blob encoding.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, strataerr.Errorf(strataerr.CodeDatabaseFailure,
			"malformed vector blob of %d bytes", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}
