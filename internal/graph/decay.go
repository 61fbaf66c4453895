// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package graph

import (
	"math"
	"time"
)

// DecayConfig tunes the exponential confidence decay applied at view time.
// Decay is never persisted; stored confidence remains the ground truth.
type DecayConfig struct {
	// HalfLife is the age at which confidence halves. A non-positive value
	// disables decay.
	HalfLife time.Duration

	// MinConfidence is the floor a decayed confidence never drops below.
	MinConfidence float64
}

// DecayedConfidence computes the time-adjusted confidence of a relation at
// referenceTime:
//
//	age     = referenceTime - relation.updatedAt   (clamped to >= 0)
//	decayed = confidence * 2^(-age / halfLife)
//	result  = max(minConfidence, min(1.0, decayed))
func DecayedConfidence(rel *Relation, referenceTime time.Time, cfg DecayConfig) float64 {
	decayed := rel.Confidence
	if cfg.HalfLife > 0 {
		age := referenceTime.Sub(rel.UpdatedAt)
		if age < 0 {
			age = 0
		}
		decayed = rel.Confidence * math.Exp2(-float64(age)/float64(cfg.HalfLife))
	}

	if decayed > 1.0 {
		decayed = 1.0
	}
	if decayed < cfg.MinConfidence {
		decayed = cfg.MinConfidence
	}
	return decayed
}
