// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"time"

	"github.com/strata-dev/strata/internal/graph"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

const entityColumns = `id, name, entity_type, observations, version, created_at, updated_at, valid_from, valid_to, changed_by`

// querier abstracts *sql.DB and *sql.Tx for read helpers.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateEntities inserts version 1 for each input entity inside a single
// transaction. The batch is all-or-nothing: any failure rolls back the lot.
func (s *Store) CreateEntities(ctx context.Context, entities []*graph.Entity) ([]*graph.Entity, error) {
	for _, e := range entities {
		if err := graph.ValidateEntity(e); err != nil {
			return nil, err
		}
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.nowMillis()
	stored := make([]*graph.Entity, 0, len(entities))
	for _, e := range entities {
		cur, err := currentEntity(ctx, tx, e.Name)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			return nil, strataerr.New(strataerr.CodeEntityExists,
				"entity already exists", strataerr.FieldEntity(e.Name))
		}

		// Recreating a soft-deleted name continues its version sequence, so
		// versions per name stay gapless and increasing.
		version, err := nextVersion(ctx, tx, `SELECT MAX(version) FROM entities WHERE name = ?`, e.Name)
		if err != nil {
			return nil, err
		}

		row := &graph.Entity{
			Name:         e.Name,
			EntityType:   e.EntityType,
			Observations: slices.Clone(e.Observations),
			Version:      version,
			CreatedAt:    now,
			UpdatedAt:    now,
			ValidFrom:    now,
			ChangedBy:    e.ChangedBy,
		}
		if err := insertEntity(ctx, tx, row); err != nil {
			return nil, err
		}
		stored = append(stored, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "committing entity batch")
	}
	return stored, nil
}

// AddObservations appends contents to the named entity's observations,
// closing the current version and inserting its successor.
func (s *Store) AddObservations(ctx context.Context, name string, contents []string) (*graph.Entity, error) {
	return s.mutateObservations(ctx, name, func(obs []string) []string {
		return append(obs, contents...)
	})
}

// DeleteObservations removes every observation equal to one of contents,
// closing the current version and inserting its successor.
func (s *Store) DeleteObservations(ctx context.Context, name string, contents []string) (*graph.Entity, error) {
	return s.mutateObservations(ctx, name, func(obs []string) []string {
		kept := make([]string, 0, len(obs))
		for _, o := range obs {
			if !slices.Contains(contents, o) {
				kept = append(kept, o)
			}
		}
		return kept
	})
}

// mutateObservations applies the close-and-insert pattern: read the current
// row, compute the new observation sequence, close the row, insert the next
// version. One transaction end to end.
func (s *Store) mutateObservations(ctx context.Context, name string, apply func([]string) []string) (*graph.Entity, error) {
	if name == "" {
		return nil, strataerr.New(strataerr.CodeGraphInvalidInput, "entity name must not be empty")
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := currentEntity(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, strataerr.New(strataerr.CodeEntityNotFound,
			"entity not found", strataerr.FieldEntity(name))
	}

	now := s.nowMillis()
	if err := closeEntityRow(ctx, tx, cur.ID, now); err != nil {
		return nil, err
	}

	next := &graph.Entity{
		Name:         cur.Name,
		EntityType:   cur.EntityType,
		Observations: apply(cur.Observations),
		Version:      cur.Version + 1,
		CreatedAt:    cur.CreatedAt,
		UpdatedAt:    now,
		ValidFrom:    now,
		ChangedBy:    cur.ChangedBy,
	}
	if err := insertEntity(ctx, tx, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "committing entity update")
	}
	return next, nil
}

// DeleteEntities soft-deletes the named entities: each current row is closed
// without a successor, every current relation touching the entity is closed
// in the same transaction, and the entity's embedding rows are removed.
// Names with no current version are skipped.
func (s *Store) DeleteEntities(ctx context.Context, names []string) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.nowMillis()
	for _, name := range names {
		cur, err := currentEntity(ctx, tx, name)
		if err != nil {
			return err
		}
		if cur == nil {
			continue
		}

		if err := closeEntityRow(ctx, tx, cur.ID, now); err != nil {
			return err
		}

		// Cascade: close every current relation where the entity appears on
		// either side. Application-level fan-out, same transaction.
		const closeRels = `UPDATE relations SET valid_to = ? WHERE valid_to IS NULL AND (from_name = ? OR to_name = ?)`
		if _, err := tx.ExecContext(ctx, closeRels, now.UnixMilli(), name, name); err != nil {
			return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
				"closing relations for entity %s", name)
		}

		if err := deleteEmbeddingRows(ctx, tx, name); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "committing entity delete")
	}
	return nil
}

// GetEntity returns the current version of the named entity, or nil when no
// current version exists.
func (s *Store) GetEntity(ctx context.Context, name string) (*graph.Entity, error) {
	return currentEntity(ctx, s.db, name)
}

// currentEntity reads the row with valid_to IS NULL for name. Finding more
// than one is a consistency fault, never silently resolved.
func currentEntity(ctx context.Context, q querier, name string) (*graph.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE name = ? AND valid_to IS NULL LIMIT 2`
	rows, err := q.QueryContext(ctx, query, name)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"querying current entity %s", name)
	}
	defer func() { _ = rows.Close() }()

	var found []*graph.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, e)
	}
	if err := rows.Err(); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"iterating current entity %s", name)
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, strataerr.New(strataerr.CodeDatabaseFailure,
			"multiple current versions", strataerr.FieldEntity(name))
	}
}

func insertEntity(ctx context.Context, q querier, e *graph.Entity) error {
	obs, err := marshalObservations(e.Observations)
	if err != nil {
		return err
	}

	const query = `INSERT INTO entities (name, entity_type, observations, version, created_at, updated_at, valid_from, valid_to, changed_by)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)`
	res, err := q.ExecContext(ctx, query,
		e.Name, string(e.EntityType), obs, e.Version,
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(), e.ValidFrom.UnixMilli(), e.ChangedBy,
	)
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"inserting entity %s v%d", e.Name, e.Version)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"reading entity row id for %s", e.Name)
	}
	return nil
}

func closeEntityRow(ctx context.Context, q querier, id int64, at time.Time) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE entities SET valid_to = ? WHERE id = ?`, at.UnixMilli(), id); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "closing entity row %d", id)
	}
	return nil
}

// nextVersion returns 1 + the highest version recorded for a logical key,
// or 1 when the key has no history.
func nextVersion(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		return 0, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "reading last version")
	}
	if !last.Valid {
		return 1, nil
	}
	return last.Int64 + 1, nil
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*graph.Entity, error) {
	var (
		e         graph.Entity
		entType   string
		obsJSON   string
		createdAt int64
		updatedAt int64
		validFrom int64
		validTo   sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Name, &entType, &obsJSON, &e.Version,
		&createdAt, &updatedAt, &validFrom, &validTo, &e.ChangedBy); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "scanning entity row")
	}

	e.EntityType = graph.EntityType(entType)
	e.CreatedAt = time.UnixMilli(createdAt)
	e.UpdatedAt = time.UnixMilli(updatedAt)
	e.ValidFrom = time.UnixMilli(validFrom)
	if validTo.Valid {
		t := time.UnixMilli(validTo.Int64)
		e.ValidTo = &t
	}

	if err := json.Unmarshal([]byte(obsJSON), &e.Observations); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure,
			"unmarshalling observations for %s", e.Name)
	}
	return &e, nil
}

func marshalObservations(obs []string) (string, error) {
	if obs == nil {
		obs = []string{}
	}
	b, err := json.Marshal(obs)
	if err != nil {
		return "", strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "marshalling observations")
	}
	return string(b), nil
}
