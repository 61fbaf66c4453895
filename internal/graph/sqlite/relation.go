// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/strata-dev/strata/internal/graph"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

const relationColumns = `id, from_name, to_name, from_id, to_id, relation_type, strength, confidence, metadata, version, created_at, updated_at, valid_from, valid_to, changed_by`

// CreateRelations inserts version 1 for each input relation inside a single
// transaction, all-or-nothing. Both endpoints must resolve to current
// entities; the foreign keys are deferred, so integrity is settled at commit.
func (s *Store) CreateRelations(ctx context.Context, relations []*graph.Relation) ([]*graph.Relation, error) {
	for _, r := range relations {
		if err := graph.ValidateRelation(r); err != nil {
			return nil, err
		}
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.nowMillis()
	stored := make([]*graph.Relation, 0, len(relations))
	for _, r := range relations {
		cur, err := currentRelation(ctx, tx, r.From, r.To, r.RelationType)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			return nil, strataerr.New(strataerr.CodeRelationExists,
				"relation already exists",
				strataerr.FieldRelation(r.From, r.To, string(r.RelationType)))
		}

		fromEnt, err := currentEntity(ctx, tx, r.From)
		if err != nil {
			return nil, err
		}
		toEnt, err := currentEntity(ctx, tx, r.To)
		if err != nil {
			return nil, err
		}
		if fromEnt == nil || toEnt == nil {
			missing := r.From
			if fromEnt != nil {
				missing = r.To
			}
			return nil, strataerr.New(strataerr.CodeEntityNotFound,
				"relation endpoint not found", strataerr.FieldEntity(missing))
		}

		version, err := nextVersion(ctx, tx,
			`SELECT MAX(version) FROM relations WHERE from_name = ? AND to_name = ? AND relation_type = ?`,
			r.From, r.To, string(r.RelationType))
		if err != nil {
			return nil, err
		}

		row := &graph.Relation{
			From:         r.From,
			To:           r.To,
			FromID:       fromEnt.ID,
			ToID:         toEnt.ID,
			RelationType: r.RelationType,
			Strength:     r.Strength,
			Confidence:   r.Confidence,
			Metadata:     r.Metadata,
			Version:      version,
			CreatedAt:    now,
			UpdatedAt:    now,
			ValidFrom:    now,
			ChangedBy:    r.ChangedBy,
		}
		if err := insertRelation(ctx, tx, row); err != nil {
			return nil, err
		}
		stored = append(stored, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "committing relation batch")
	}
	return stored, nil
}

// UpdateRelation closes the current version of the relation identified by
// (from, to, relationType) and inserts a successor with the new strength,
// confidence, and metadata.
func (s *Store) UpdateRelation(ctx context.Context, relation *graph.Relation) (*graph.Relation, error) {
	if err := graph.ValidateRelation(relation); err != nil {
		return nil, err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := currentRelation(ctx, tx, relation.From, relation.To, relation.RelationType)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, strataerr.New(strataerr.CodeRelationNotFound,
			"relation not found",
			strataerr.FieldRelation(relation.From, relation.To, string(relation.RelationType)))
	}

	now := s.nowMillis()
	if err := closeRelationRow(ctx, tx, cur.ID, now); err != nil {
		return nil, err
	}

	next := &graph.Relation{
		From:         cur.From,
		To:           cur.To,
		FromID:       cur.FromID,
		ToID:         cur.ToID,
		RelationType: cur.RelationType,
		Strength:     relation.Strength,
		Confidence:   relation.Confidence,
		Metadata:     relation.Metadata,
		Version:      cur.Version + 1,
		CreatedAt:    cur.CreatedAt,
		UpdatedAt:    now,
		ValidFrom:    now,
		ChangedBy:    relation.ChangedBy,
	}
	if err := insertRelation(ctx, tx, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "committing relation update")
	}
	return next, nil
}

// DeleteRelations soft-deletes the identified relations: current rows are
// closed without successors. No cascade. Keys with no current version are
// skipped.
func (s *Store) DeleteRelations(ctx context.Context, keys []graph.RelationKey) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.nowMillis()
	for _, k := range keys {
		cur, err := currentRelation(ctx, tx, k.From, k.To, k.RelationType)
		if err != nil {
			return err
		}
		if cur == nil {
			continue
		}
		if err := closeRelationRow(ctx, tx, cur.ID, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "committing relation delete")
	}
	return nil
}

// GetRelation returns the current version of the identified relation, or nil
// when no current version exists.
func (s *Store) GetRelation(ctx context.Context, from, to string, relType graph.RelationType) (*graph.Relation, error) {
	return currentRelation(ctx, s.db, from, to, relType)
}

// currentRelation reads the row with valid_to IS NULL for the logical key.
// Finding more than one is a consistency fault, never silently resolved.
func currentRelation(ctx context.Context, q querier, from, to string, relType graph.RelationType) (*graph.Relation, error) {
	query := `SELECT ` + relationColumns + ` FROM relations
WHERE from_name = ? AND to_name = ? AND relation_type = ? AND valid_to IS NULL LIMIT 2`
	rows, err := q.QueryContext(ctx, query, from, to, string(relType))
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"querying current relation %s -[%s]-> %s", from, relType, to)
	}
	defer func() { _ = rows.Close() }()

	var found []*graph.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"iterating current relation %s -[%s]-> %s", from, relType, to)
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, strataerr.New(strataerr.CodeDatabaseFailure,
			"multiple current versions",
			strataerr.FieldRelation(from, to, string(relType)))
	}
}

func insertRelation(ctx context.Context, q querier, r *graph.Relation) error {
	meta, err := marshalMetadata(r.Metadata)
	if err != nil {
		return err
	}

	const query = `INSERT INTO relations (from_name, to_name, from_id, to_id, relation_type, strength, confidence, metadata, version, created_at, updated_at, valid_from, valid_to, changed_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`
	res, err := q.ExecContext(ctx, query,
		r.From, r.To, r.FromID, r.ToID, string(r.RelationType),
		r.Strength, r.Confidence, meta, r.Version,
		r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli(), r.ValidFrom.UnixMilli(), r.ChangedBy,
	)
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"inserting relation %s -[%s]-> %s v%d", r.From, r.RelationType, r.To, r.Version)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"reading relation row id for %s -[%s]-> %s", r.From, r.RelationType, r.To)
	}
	return nil
}

func closeRelationRow(ctx context.Context, q querier, id int64, at time.Time) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE relations SET valid_to = ? WHERE id = ?`, at.UnixMilli(), id); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "closing relation row %d", id)
	}
	return nil
}

func scanRelation(row scanner) (*graph.Relation, error) {
	var (
		r         graph.Relation
		relType   string
		metaJSON  string
		createdAt int64
		updatedAt int64
		validFrom int64
		validTo   sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.From, &r.To, &r.FromID, &r.ToID, &relType,
		&r.Strength, &r.Confidence, &metaJSON, &r.Version,
		&createdAt, &updatedAt, &validFrom, &validTo, &r.ChangedBy); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "scanning relation row")
	}

	r.RelationType = graph.RelationType(relType)
	r.CreatedAt = time.UnixMilli(createdAt)
	r.UpdatedAt = time.UnixMilli(updatedAt)
	r.ValidFrom = time.UnixMilli(validFrom)
	if validTo.Valid {
		t := time.UnixMilli(validTo.Int64)
		r.ValidTo = &t
	}

	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
				"unmarshalling relation metadata for %s -[%s]-> %s", r.From, r.RelationType, r.To)
		}
	}
	return &r, nil
}

func marshalMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "marshalling relation metadata")
	}
	return string(b), nil
}
