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

func TestCreateRelations_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "PayAPI", graph.EntityTypeTask)

	stored, err := s.CreateRelations(ctx, []*graph.Relation{{
		From:         "PayAPI",
		To:           "Checkout",
		RelationType: graph.RelationTypePartOf,
		Strength:     0.9,
		Confidence:   0.8,
		Metadata:     map[string]any{"source": "planning"},
	}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.EqualValues(t, 1, stored[0].Version)

	got, err := s.GetRelation(ctx, "PayAPI", "Checkout", graph.RelationTypePartOf)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.9, got.Strength, 1e-9)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
	assert.Equal(t, "planning", got.Metadata["source"])
	assert.Nil(t, got.ValidTo)
}

func TestCreateRelations_RejectsSelfRelation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)

	_, err := s.CreateRelations(ctx, []*graph.Relation{{
		From:         "Checkout",
		To:           "Checkout",
		RelationType: graph.RelationTypeRelatesTo,
		Strength:     1,
		Confidence:   1,
	}})
	require.Error(t, err)
	assert.True(t, strataerr.IsInvalidInput(err))
}

func TestCreateRelations_RejectsOutOfRangeConfidence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateRelations(ctx, []*graph.Relation{{
		From:         "A",
		To:           "B",
		RelationType: graph.RelationTypeDependsOn,
		Strength:     0.5,
		Confidence:   1.5,
	}})
	require.Error(t, err)
	assert.True(t, strataerr.IsInvalidInput(err))
}

func TestCreateRelations_MissingEndpoint(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)

	_, err := s.CreateRelations(ctx, []*graph.Relation{{
		From:         "Ghost",
		To:           "Checkout",
		RelationType: graph.RelationTypeDependsOn,
		Strength:     1,
		Confidence:   1,
	}})
	require.Error(t, err)
	assert.True(t, strataerr.IsNotFound(err))
}

func TestCreateRelations_DuplicateCurrentKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "PayAPI", graph.EntityTypeTask)
	mustCreateRelation(t, s, "PayAPI", "Checkout", graph.RelationTypePartOf)

	_, err := s.CreateRelations(ctx, []*graph.Relation{{
		From:         "PayAPI",
		To:           "Checkout",
		RelationType: graph.RelationTypePartOf,
		Strength:     1,
		Confidence:   1,
	}})
	require.Error(t, err)
	assert.True(t, strataerr.IsConflict(err))
}

func TestUpdateRelation_ClosesAndInserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "PayAPI", graph.EntityTypeTask)
	mustCreateRelation(t, s, "PayAPI", "Checkout", graph.RelationTypePartOf)

	updated, err := s.UpdateRelation(ctx, &graph.Relation{
		From:         "PayAPI",
		To:           "Checkout",
		RelationType: graph.RelationTypePartOf,
		Strength:     0.4,
		Confidence:   0.6,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated.Version)
	assert.InDelta(t, 0.4, updated.Strength, 1e-9)

	history, err := s.GetRelationHistory(ctx, "PayAPI", "Checkout", graph.RelationTypePartOf)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.EqualValues(t, 2, history[0].Version)
	assert.Nil(t, history[0].ValidTo)
	assert.NotNil(t, history[1].ValidTo)
}

func TestUpdateRelation_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.UpdateRelation(ctx, &graph.Relation{
		From:         "A",
		To:           "B",
		RelationType: graph.RelationTypeImplements,
		Strength:     1,
		Confidence:   1,
	})
	require.Error(t, err)
	assert.True(t, strataerr.IsNotFound(err))
	assert.True(t, strataerr.HasCode(err, strataerr.CodeRelationNotFound))
}

func TestDeleteRelations_NoCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "PayAPI", graph.EntityTypeTask)
	mustCreateRelation(t, s, "PayAPI", "Checkout", graph.RelationTypePartOf)

	require.NoError(t, s.DeleteRelations(ctx, []graph.RelationKey{{
		From: "PayAPI", To: "Checkout", RelationType: graph.RelationTypePartOf,
	}}))

	rel, err := s.GetRelation(ctx, "PayAPI", "Checkout", graph.RelationTypePartOf)
	require.NoError(t, err)
	assert.Nil(t, rel)

	// Entities are untouched.
	ent, err := s.GetEntity(ctx, "PayAPI")
	require.NoError(t, err)
	require.NotNil(t, ent)
	assert.Nil(t, ent.ValidTo)
}

func TestGetRelation_MissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	rel, err := s.GetRelation(context.Background(), "A", "B", graph.RelationTypeRelatesTo)
	require.NoError(t, err)
	assert.Nil(t, rel)
}
