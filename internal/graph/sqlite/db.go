// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package sqlite implements graph.Store on a single embedded SQLite database
// with the sqlite-vec extension providing the vector index.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/strata-dev/strata/internal/graph"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ graph.Store = (*Store)(nil)

const defaultBusyTimeout = 5 * time.Second

// Store implements graph.Store backed by SQLite with sqlite-vec.
type Store struct {
	db          *sql.DB
	dimensions  int
	decay       graph.DecayConfig
	semWeight   float64
	busyTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithDecay sets the confidence decay parameters used by GetDecayedGraph.
func WithDecay(cfg graph.DecayConfig) Option {
	return func(s *Store) { s.decay = cfg }
}

// WithSemanticWeight sets the semantic share of the hybrid search score.
func WithSemanticWeight(w float64) Option {
	return func(s *Store) { s.semWeight = w }
}

// WithBusyTimeout bounds how long a writer waits for the database lock
// before the operation fails instead of deadlocking.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) { s.busyTimeout = d }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New opens (or creates) the graph database at dbPath and initialises the
// schema. dbPath may be ":memory:" for an ephemeral store.
func New(dbPath string, dimensions int, opts ...Option) (*Store, error) {
	if dimensions <= 0 {
		return nil, strataerr.New(strataerr.CodeConfigValidateInvalidValue,
			"vector dimensions must be positive")
	}

	s := &Store{
		dimensions:  dimensions,
		decay:       graph.DecayConfig{HalfLife: 30 * 24 * time.Hour, MinConfidence: 0.1},
		semWeight:   0.7,
		busyTimeout: defaultBusyTimeout,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		dbPath, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "opening graph db")
	}

	// An in-memory database exists per connection; the pool must not hand
	// out a second connection with an empty schema.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "pinging graph db")
	}

	s.db = db
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "migrating graph schema")
	}

	return s, nil
}

// migrate creates the persisted layout. Idempotent: every statement is
// IF NOT EXISTS.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS entities (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	entity_type  TEXT NOT NULL,
	observations TEXT NOT NULL DEFAULT '[]',
	version      INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	valid_from   INTEGER NOT NULL,
	valid_to     INTEGER,
	changed_by   TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_current
	ON entities(name) WHERE valid_to IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_version
	ON entities(name, version);
CREATE INDEX IF NOT EXISTS idx_entities_interval
	ON entities(valid_from, valid_to);

CREATE TABLE IF NOT EXISTS relations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	from_name     TEXT NOT NULL,
	to_name       TEXT NOT NULL,
	from_id       INTEGER NOT NULL REFERENCES entities(id) DEFERRABLE INITIALLY DEFERRED,
	to_id         INTEGER NOT NULL REFERENCES entities(id) DEFERRABLE INITIALLY DEFERRED,
	relation_type TEXT NOT NULL,
	strength      REAL NOT NULL DEFAULT 1.0,
	confidence    REAL NOT NULL DEFAULT 1.0,
	metadata      TEXT NOT NULL DEFAULT '{}',
	version       INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	valid_from    INTEGER NOT NULL,
	valid_to      INTEGER,
	changed_by    TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_relations_current
	ON relations(from_name, to_name, relation_type) WHERE valid_to IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_relations_version
	ON relations(from_name, to_name, relation_type, version);
CREATE INDEX IF NOT EXISTS idx_relations_interval
	ON relations(valid_from, valid_to);
CREATE INDEX IF NOT EXISTS idx_relations_endpoints
	ON relations(from_name, to_name);

CREATE TABLE IF NOT EXISTS embedding_metadata (
	vector_id         TEXT PRIMARY KEY,
	entity_name       TEXT NOT NULL,
	observation_index INTEGER NOT NULL DEFAULT 0,
	UNIQUE(entity_name, observation_index)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("creating graph tables: %w", err)
	}

	// vec0 only stores fixed-width vector columns; all row metadata lives in
	// embedding_metadata, joined by vector_id.
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		s.dimensions,
	)
	if _, err := s.db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	return nil
}

// Reset drops and recreates the schema, discarding all history. Maintenance
// and tests only; nothing in the normal lifecycle removes rows physically.
func (s *Store) Reset(ctx context.Context) error {
	const drop = `
DROP TABLE IF EXISTS relations;
DROP TABLE IF EXISTS entities;
DROP TABLE IF EXISTS embedding_metadata;
DROP TABLE IF EXISTS vectors;
`
	if _, err := s.db.ExecContext(ctx, drop); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "dropping graph schema")
	}
	if err := s.migrate(); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "recreating graph schema")
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// nowMillis returns the current time truncated to millisecond precision,
// matching the resolution of stored timestamps.
func (s *Store) nowMillis() time.Time {
	return time.UnixMilli(s.now().UnixMilli())
}

// beginTx starts a write transaction. The driver's busy timeout bounds the
// wait for the database lock; an elapsed timeout surfaces as a database
// failure rather than a deadlock.
func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeDatabaseFailure, "beginning transaction")
	}
	return tx, nil
}
