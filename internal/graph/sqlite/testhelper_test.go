// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/graph"
	"github.com/strata-dev/strata/internal/graph/sqlite"
)

const testDims = 3

// testDir creates a temp directory for a test and returns its path.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "strata-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

// newTestStore opens a store with 3-dimensional embeddings on a temp file.
func newTestStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(testDBPath(t, "graph"), testDims, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// mustCreateEntity stores a single entity and returns the stored row.
func mustCreateEntity(t *testing.T, s *sqlite.Store, name string, typ graph.EntityType, obs ...string) *graph.Entity {
	t.Helper()
	stored, err := s.CreateEntities(context.Background(), []*graph.Entity{{
		Name:         name,
		EntityType:   typ,
		Observations: obs,
	}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	return stored[0]
}

// mustCreateRelation stores a single relation with full confidence.
func mustCreateRelation(t *testing.T, s *sqlite.Store, from, to string, typ graph.RelationType) *graph.Relation {
	t.Helper()
	stored, err := s.CreateRelations(context.Background(), []*graph.Relation{{
		From:         from,
		To:           to,
		RelationType: typ,
		Strength:     1.0,
		Confidence:   1.0,
	}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	return stored[0]
}
