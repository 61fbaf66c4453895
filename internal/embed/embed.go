// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package embed defines the narrow interface through which the engine
// consumes externally generated embeddings, plus concrete providers.
package embed

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder turns text into a fixed-dimension float vector. The graph core
// never calls a network directly; it only accepts vectors produced here.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Static is a deterministic in-process embedder for tests and offline use.
// Vectors are derived from token hashes and L2-normalised, so identical
// texts map to identical unit vectors.
type Static struct {
	dims int
}

// NewStatic returns a Static embedder producing vectors of the given width.
func NewStatic(dims int) *Static {
	return &Static{dims: dims}
}

func (s *Static) Dimensions() int { return s.dims }

func (s *Static) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	// Simple xorshift stream seeded from the text hash.
	x := seed | 1
	for i := range vec {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		vec[i] = float32(int64(x%2000)-1000) / 1000
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}
