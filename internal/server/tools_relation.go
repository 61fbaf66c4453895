// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/strata-dev/strata/internal/graph"
)

// relationInput is the wire shape of a relation in tool arguments. Strength
// and confidence default to 1.0 when omitted.
type relationInput struct {
	From         string         `json:"from"`
	To           string         `json:"to"`
	RelationType string         `json:"relationType"`
	Strength     *float64       `json:"strength"`
	Confidence   *float64       `json:"confidence"`
	Metadata     map[string]any `json:"metadata"`
	ChangedBy    string         `json:"changedBy"`
}

func (in relationInput) toRelation() *graph.Relation {
	r := &graph.Relation{
		From:         in.From,
		To:           in.To,
		RelationType: graph.RelationType(in.RelationType),
		Strength:     1.0,
		Confidence:   1.0,
		Metadata:     in.Metadata,
		ChangedBy:    in.ChangedBy,
	}
	if in.Strength != nil {
		r.Strength = *in.Strength
	}
	if in.Confidence != nil {
		r.Confidence = *in.Confidence
	}
	return r
}

// relationKeyInput identifies a logical relation in tool arguments.
type relationKeyInput struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

func (s *Server) registerRelationTools() {
	s.registerCreateRelations()
	s.registerUpdateRelation()
	s.registerDeleteRelations()
}

func (s *Server) registerCreateRelations() {
	tool := mcp.NewTool(
		"create_relations",
		mcp.WithDescription(
			"Create typed relations between existing entities. relationType is one of "+
				"implements, depends_on, relates_to, part_of. Strength and confidence are in [0,1] "+
				"and default to 1.0. The batch is applied atomically or not at all.",
		),
		mcp.WithArray("relations", mcp.Required(),
			mcp.Description("Relations to create: [{from, to, relationType, strength?, confidence?, metadata?, changedBy?}]")),
		mcp.WithReadOnlyHintAnnotation(false),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inputs, err := decodeArg[[]relationInput](req.GetArguments(), "relations")
		if err != nil {
			return toolError(err), nil
		}

		relations := make([]*graph.Relation, len(inputs))
		for i, in := range inputs {
			relations[i] = in.toRelation()
		}

		stored, err := s.store.CreateRelations(ctx, relations)
		if err != nil {
			return toolError(err), nil
		}
		return textResult(stored)
	})
}

func (s *Server) registerUpdateRelation() {
	tool := mcp.NewTool(
		"update_relation",
		mcp.WithDescription(
			"Update an existing relation's strength, confidence, or metadata. Produces a new "+
				"relation version; fails if no current relation matches (from, to, relationType).",
		),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source entity name")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target entity name")),
		mcp.WithString("relationType", mcp.Required(), mcp.Description("Relation type")),
		mcp.WithNumber("strength", mcp.Description("New strength in [0,1]")),
		mcp.WithNumber("confidence", mcp.Description("New confidence in [0,1]")),
		mcp.WithObject("metadata", mcp.Description("Replacement metadata map")),
		mcp.WithString("changedBy", mcp.Description("Attribution for the change")),
		mcp.WithReadOnlyHintAnnotation(false),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input relationInput
		if err := decodeArgs(req.GetArguments(), &input); err != nil {
			return toolError(err), nil
		}

		stored, err := s.store.UpdateRelation(ctx, input.toRelation())
		if err != nil {
			return toolError(err), nil
		}
		return textResult(stored)
	})
}

func (s *Server) registerDeleteRelations() {
	tool := mcp.NewTool(
		"delete_relations",
		mcp.WithDescription(
			"Soft-delete relations identified by (from, to, relationType). History remains "+
				"queryable. Unknown relations are ignored.",
		),
		mcp.WithArray("relations", mcp.Required(),
			mcp.Description("Relation keys to delete: [{from, to, relationType}]")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inputs, err := decodeArg[[]relationKeyInput](req.GetArguments(), "relations")
		if err != nil {
			return toolError(err), nil
		}

		keys := make([]graph.RelationKey, len(inputs))
		for i, in := range inputs {
			keys[i] = graph.RelationKey{
				From:         in.From,
				To:           in.To,
				RelationType: graph.RelationType(in.RelationType),
			}
		}

		if err := s.store.DeleteRelations(ctx, keys); err != nil {
			return toolError(err), nil
		}
		return textResult(map[string]any{"deleted": keys})
	})
}
