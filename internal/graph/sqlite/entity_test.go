// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/graph"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func TestCreateEntities_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stored, err := s.CreateEntities(ctx, []*graph.Entity{{
		Name:         "Checkout",
		EntityType:   graph.EntityTypeFeature,
		Observations: []string{"handles payment flow"},
		ChangedBy:    "tester",
	}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.EqualValues(t, 1, stored[0].Version)
	assert.Nil(t, stored[0].ValidTo)
	assert.False(t, stored[0].CreatedAt.IsZero())

	got, err := s.GetEntity(ctx, "Checkout")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Checkout", got.Name)
	assert.Equal(t, graph.EntityTypeFeature, got.EntityType)
	assert.Equal(t, []string{"handles payment flow"}, got.Observations)
	assert.EqualValues(t, 1, got.Version)
	assert.Equal(t, "tester", got.ChangedBy)
	assert.True(t, got.UpdatedAt.Equal(got.CreatedAt) || got.UpdatedAt.After(got.CreatedAt))
}

func TestCreateEntities_AlreadyExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)

	_, err := s.CreateEntities(ctx, []*graph.Entity{{
		Name:       "Checkout",
		EntityType: graph.EntityTypeFeature,
	}})
	require.Error(t, err)
	assert.True(t, strataerr.IsConflict(err))
}

func TestCreateEntities_BatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Existing", graph.EntityTypeTask)

	_, err := s.CreateEntities(ctx, []*graph.Entity{
		{Name: "Fresh", EntityType: graph.EntityTypeTask},
		{Name: "Existing", EntityType: graph.EntityTypeTask},
	})
	require.Error(t, err)

	// The conflicting batch must leave no trace of its first item.
	got, err := s.GetEntity(ctx, "Fresh")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateEntities_RejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateEntities(ctx, []*graph.Entity{{
		Name:       "Weird",
		EntityType: graph.EntityType("gadget"),
	}})
	require.Error(t, err)
	assert.True(t, strataerr.IsInvalidInput(err))
}

func TestGetEntity_MissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetEntity(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddObservations_VersionsAccumulate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature, "first")

	v2, err := s.AddObservations(ctx, "Checkout", []string{"second"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, v2.Version)
	assert.Equal(t, []string{"first", "second"}, v2.Observations)

	v3, err := s.AddObservations(ctx, "Checkout", []string{"third"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, v3.Version)

	history, err := s.GetEntityHistory(ctx, "Checkout")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.EqualValues(t, 3, history[0].Version)
	assert.EqualValues(t, 2, history[1].Version)
	assert.EqualValues(t, 1, history[2].Version)

	// Only the newest row is current.
	assert.Nil(t, history[0].ValidTo)
	assert.NotNil(t, history[1].ValidTo)
	assert.NotNil(t, history[2].ValidTo)
}

func TestAddObservations_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddObservations(context.Background(), "ghost", []string{"boo"})
	require.Error(t, err)
	assert.True(t, strataerr.IsNotFound(err))
}

func TestDeleteObservations_RemovesMatching(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature, "keep", "drop", "keep two")

	v2, err := s.DeleteObservations(ctx, "Checkout", []string{"drop"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, v2.Version)
	assert.Equal(t, []string{"keep", "keep two"}, v2.Observations)
}

func TestDeleteEntities_SoftDeleteKeepsHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature, "obs")
	_, err := s.AddObservations(ctx, "Checkout", []string{"more"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntities(ctx, []string{"Checkout"}))

	got, err := s.GetEntity(ctx, "Checkout")
	require.NoError(t, err)
	assert.Nil(t, got)

	history, err := s.GetEntityHistory(ctx, "Checkout")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, v := range history {
		assert.NotNil(t, v.ValidTo, "soft delete closes every version")
	}
}

func TestDeleteEntities_CascadesToRelations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "PayAPI", graph.EntityTypeTask)
	mustCreateRelation(t, s, "PayAPI", "Checkout", graph.RelationTypePartOf)

	require.NoError(t, s.DeleteEntities(ctx, []string{"Checkout"}))

	rel, err := s.GetRelation(ctx, "PayAPI", "Checkout", graph.RelationTypePartOf)
	require.NoError(t, err)
	assert.Nil(t, rel, "relations touching a deleted entity are closed")

	// Relation history retains the closed version.
	history, err := s.GetRelationHistory(ctx, "PayAPI", "Checkout", graph.RelationTypePartOf)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotNil(t, history[0].ValidTo)
}

func TestDeleteEntities_UnknownNameIsNoOp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.DeleteEntities(context.Background(), []string{"ghost"}))
}

func TestDeleteEntities_IsTerminal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)
	require.NoError(t, s.DeleteEntities(ctx, []string{"Checkout"}))

	// A deleted entity is never the target of a new version.
	_, err := s.AddObservations(ctx, "Checkout", []string{"late"})
	require.Error(t, err)
	assert.True(t, strataerr.IsNotFound(err))

	// But the name can be created anew as a distinct logical entity.
	recreated, err := s.CreateEntities(ctx, []*graph.Entity{{
		Name:       "Checkout",
		EntityType: graph.EntityTypeFeature,
	}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, recreated[0].Version, "version sequence continues per name")
}
