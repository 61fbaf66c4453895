// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package graph

import (
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// ValidEntityType reports whether t is a member of the closed enumeration.
func ValidEntityType(t EntityType) bool {
	for _, et := range EntityTypes {
		if t == et {
			return true
		}
	}
	return false
}

// ValidRelationType reports whether t is a member of the closed enumeration.
func ValidRelationType(t RelationType) bool {
	for _, rt := range RelationTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// ValidateEntity checks an entity before any write. Validation failures are
// always rejected before the store is touched.
func ValidateEntity(e *Entity) error {
	if e == nil {
		return strataerr.New(strataerr.CodeGraphInvalidInput, "entity is nil")
	}
	if e.Name == "" {
		return strataerr.New(strataerr.CodeGraphInvalidInput, "entity name must not be empty")
	}
	if !ValidEntityType(e.EntityType) {
		return strataerr.New(strataerr.CodeGraphInvalidInput,
			"unknown entity type "+string(e.EntityType), strataerr.FieldEntity(e.Name))
	}
	return nil
}

// ValidateRelation checks a relation before any write: no self-relations,
// known relation type, strength and confidence within [0,1].
func ValidateRelation(r *Relation) error {
	if r == nil {
		return strataerr.New(strataerr.CodeGraphInvalidInput, "relation is nil")
	}
	if r.From == "" || r.To == "" {
		return strataerr.New(strataerr.CodeGraphInvalidInput, "relation endpoints must not be empty")
	}
	if r.From == r.To {
		return strataerr.New(strataerr.CodeGraphInvalidInput,
			"self-relations are not allowed", strataerr.FieldEntity(r.From))
	}
	if !ValidRelationType(r.RelationType) {
		return strataerr.New(strataerr.CodeGraphInvalidInput,
			"unknown relation type "+string(r.RelationType),
			strataerr.FieldRelation(r.From, r.To, string(r.RelationType)))
	}
	if r.Strength < 0 || r.Strength > 1 {
		return strataerr.New(strataerr.CodeGraphInvalidInput,
			"strength must be within [0,1]",
			strataerr.FieldRelation(r.From, r.To, string(r.RelationType)))
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return strataerr.New(strataerr.CodeGraphInvalidInput,
			"confidence must be within [0,1]",
			strataerr.FieldRelation(r.From, r.To, string(r.RelationType)))
	}
	return nil
}
