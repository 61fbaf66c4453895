// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package sqlite_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/graph"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// unit returns a normalized copy of v so cosine similarity is the plain
// dot product in assertions.
func unit(v ...float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func TestStoreEntityVector_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)

	vec := unit(1, 2, 3)
	require.NoError(t, s.StoreEntityVector(ctx, "Checkout", vec))

	got, err := s.GetEntityEmbedding(ctx, "Checkout")
	require.NoError(t, err)
	require.Len(t, got, testDims)
	for i := range vec {
		assert.InDelta(t, vec[i], got[i], 1e-6)
	}
}

func TestStoreEntityVector_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)

	err := s.StoreEntityVector(ctx, "Checkout", []float32{1, 0})
	require.Error(t, err)
	assert.True(t, strataerr.IsInvalidInput(err))
	assert.True(t, strataerr.HasCode(err, strataerr.CodeEmbeddingInvalid))

	// The rejected write left nothing behind.
	got, err := s.GetEntityEmbedding(ctx, "Checkout")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreEntityVector_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)

	require.NoError(t, s.StoreEntityVector(ctx, "Checkout", unit(1, 0, 0)))
	require.NoError(t, s.StoreEntityVector(ctx, "Checkout", unit(0, 1, 0)))

	got, err := s.GetEntityEmbedding(ctx, "Checkout")
	require.NoError(t, err)
	require.Len(t, got, testDims)
	assert.InDelta(t, 0, got[0], 1e-6)
	assert.InDelta(t, 1, got[1], 1e-6)

	// Only one row of results for the entity after upsert.
	results, err := s.FindSimilarEntities(ctx, unit(0, 1, 0), 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestGetEntityEmbedding_MissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetEntityEmbedding(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteEntityEmbedding(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Checkout", graph.EntityTypeFeature)
	require.NoError(t, s.StoreEntityVector(ctx, "Checkout", unit(1, 0, 0)))

	require.NoError(t, s.DeleteEntityEmbedding(ctx, "Checkout"))

	got, err := s.GetEntityEmbedding(ctx, "Checkout")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, s.DeleteEntityEmbedding(ctx, "Checkout"))
}

func TestFindSimilarEntities_RanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Near", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "Mid", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "Far", graph.EntityTypeFeature)
	require.NoError(t, s.StoreEntityVector(ctx, "Near", unit(1, 0, 0)))
	require.NoError(t, s.StoreEntityVector(ctx, "Mid", unit(1, 1, 0)))
	require.NoError(t, s.StoreEntityVector(ctx, "Far", unit(0, 0, 1)))

	results, err := s.FindSimilarEntities(ctx, unit(1, 0, 0), 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Near", results[0].Entity.Name)
	assert.Equal(t, "Mid", results[1].Entity.Name)
	assert.Equal(t, "Far", results[2].Entity.Name)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.InDelta(t, math.Sqrt2/2, results[1].Score, 1e-4)
	assert.InDelta(t, 0.0, results[2].Score, 1e-4)
}

func TestFindSimilarEntities_MinSimilarityAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Near", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "Mid", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "Far", graph.EntityTypeFeature)
	require.NoError(t, s.StoreEntityVector(ctx, "Near", unit(1, 0, 0)))
	require.NoError(t, s.StoreEntityVector(ctx, "Mid", unit(1, 1, 0)))
	require.NoError(t, s.StoreEntityVector(ctx, "Far", unit(0, 0, 1)))

	results, err := s.FindSimilarEntities(ctx, unit(1, 0, 0), 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2, "threshold drops the orthogonal vector")

	results, err = s.FindSimilarEntities(ctx, unit(1, 0, 0), 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Near", results[0].Entity.Name)
}

func TestFindSimilarEntities_ExcludesSoftDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "Alive", graph.EntityTypeFeature)
	mustCreateEntity(t, s, "Doomed", graph.EntityTypeFeature)
	require.NoError(t, s.StoreEntityVector(ctx, "Alive", unit(1, 0, 0)))
	require.NoError(t, s.StoreEntityVector(ctx, "Doomed", unit(1, 0, 0)))

	require.NoError(t, s.DeleteEntities(ctx, []string{"Doomed"}))

	results, err := s.FindSimilarEntities(ctx, unit(1, 0, 0), 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Alive", results[0].Entity.Name)
}

func TestFindSimilarEntities_DimensionMismatch(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindSimilarEntities(context.Background(), []float32{1}, 10, 0)
	require.Error(t, err)
	assert.True(t, strataerr.HasCode(err, strataerr.CodeEmbeddingInvalid))
}

func TestHybridSearch_BlendsSemanticAndLexical(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "payment-service", graph.EntityTypeComponent, "processes card payments")
	mustCreateEntity(t, s, "search-index", graph.EntityTypeComponent)
	require.NoError(t, s.StoreEntityVector(ctx, "payment-service", unit(1, 0, 0)))
	require.NoError(t, s.StoreEntityVector(ctx, "search-index", unit(0, 1, 0)))

	results, err := s.HybridSearch(ctx, "payment", unit(1, 0, 0), 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "payment-service", results[0].Entity.Name)

	// Default weights: 0.7*1.0 semantic + 0.3*0.8 name-substring lexical.
	assert.InDelta(t, 0.7*1.0+0.3*0.8, results[0].Score, 1e-3)
}

func TestHybridSearch_NilVectorFallsBackToLexical(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "payment-service", graph.EntityTypeComponent)
	mustCreateEntity(t, s, "search-index", graph.EntityTypeComponent)

	results, err := s.HybridSearch(ctx, "payment", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "payment-service", results[0].Entity.Name)
	assert.InDelta(t, 0.8, results[0].Score, 1e-9)
}

func TestHybridSearch_LimitApplies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntity(t, s, "alpha-widget", graph.EntityTypeComponent)
	mustCreateEntity(t, s, "beta-widget", graph.EntityTypeComponent)
	mustCreateEntity(t, s, "gamma-widget", graph.EntityTypeComponent)

	results, err := s.HybridSearch(ctx, "widget", nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
}
