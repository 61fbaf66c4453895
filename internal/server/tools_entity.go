// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/strata-dev/strata/internal/graph"
)

// entityInput is the wire shape of an entity in tool arguments.
type entityInput struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
	ChangedBy    string   `json:"changedBy"`
}

func (s *Server) registerEntityTools() {
	s.registerCreateEntities()
	s.registerAddObservations()
	s.registerDeleteObservations()
	s.registerDeleteEntities()
}

func (s *Server) registerCreateEntities() {
	tool := mcp.NewTool(
		"create_entities",
		mcp.WithDescription(
			"Create new entities in the knowledge graph. Each entity needs a unique name, "+
				"an entityType (feature, task, decision, component, test), and a list of observations. "+
				"Fails if any name already exists; the whole batch is applied atomically or not at all.",
		),
		mcp.WithArray("entities", mcp.Required(),
			mcp.Description("Entities to create: [{name, entityType, observations, changedBy?}]")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inputs, err := decodeArg[[]entityInput](req.GetArguments(), "entities")
		if err != nil {
			return toolError(err), nil
		}

		entities := make([]*graph.Entity, len(inputs))
		for i, in := range inputs {
			entities[i] = &graph.Entity{
				Name:         in.Name,
				EntityType:   graph.EntityType(in.EntityType),
				Observations: in.Observations,
				ChangedBy:    in.ChangedBy,
			}
		}

		stored, err := s.store.CreateEntities(ctx, entities)
		if err != nil {
			return toolError(err), nil
		}

		for _, e := range stored {
			s.refreshEmbedding(ctx, e)
		}
		return textResult(stored)
	})
}

func (s *Server) registerAddObservations() {
	tool := mcp.NewTool(
		"add_observations",
		mcp.WithDescription(
			"Append observations to an existing entity. Produces a new entity version; "+
				"prior versions remain queryable through get_entity_history.",
		),
		mcp.WithString("entityName", mcp.Required(), mcp.Description("Name of the entity")),
		mcp.WithArray("contents", mcp.Required(), mcp.Description("Observation strings to append")),
		mcp.WithReadOnlyHintAnnotation(false),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		name, err := decodeArg[string](args, "entityName")
		if err != nil {
			return toolError(err), nil
		}
		contents, err := decodeArg[[]string](args, "contents")
		if err != nil {
			return toolError(err), nil
		}

		ent, err := s.store.AddObservations(ctx, name, contents)
		if err != nil {
			return toolError(err), nil
		}

		s.refreshEmbedding(ctx, ent)
		return textResult(ent)
	})
}

func (s *Server) registerDeleteObservations() {
	tool := mcp.NewTool(
		"delete_observations",
		mcp.WithDescription(
			"Remove specific observations from an existing entity, producing a new version.",
		),
		mcp.WithString("entityName", mcp.Required(), mcp.Description("Name of the entity")),
		mcp.WithArray("contents", mcp.Required(), mcp.Description("Observation strings to remove")),
		mcp.WithReadOnlyHintAnnotation(false),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		name, err := decodeArg[string](args, "entityName")
		if err != nil {
			return toolError(err), nil
		}
		contents, err := decodeArg[[]string](args, "contents")
		if err != nil {
			return toolError(err), nil
		}

		ent, err := s.store.DeleteObservations(ctx, name, contents)
		if err != nil {
			return toolError(err), nil
		}

		s.refreshEmbedding(ctx, ent)
		return textResult(ent)
	})
}

func (s *Server) registerDeleteEntities() {
	tool := mcp.NewTool(
		"delete_entities",
		mcp.WithDescription(
			"Soft-delete entities by name. Closes the current version of each entity and every "+
				"relation touching it; history remains queryable. Unknown names are ignored.",
		),
		mcp.WithArray("entityNames", mcp.Required(), mcp.Description("Names of entities to delete")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := decodeArg[[]string](req.GetArguments(), "entityNames")
		if err != nil {
			return toolError(err), nil
		}

		if err := s.store.DeleteEntities(ctx, names); err != nil {
			return toolError(err), nil
		}
		return textResult(map[string]any{"deleted": names})
	})
}

// refreshEmbedding regenerates the entity-level embedding after a mutation.
// Best effort: the mutation has already committed, and a missing embedding
// only excludes the entity from vector-ranked results.
func (s *Server) refreshEmbedding(ctx context.Context, e *graph.Entity) {
	if s.embedder == nil {
		return
	}

	text := e.Name + "\n" + strings.Join(e.Observations, "\n")
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding generation failed",
			slog.String("entity", e.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.store.StoreEntityVector(ctx, e.Name, vec); err != nil {
		s.logger.Warn("storing embedding failed",
			slog.String("entity", e.Name),
			slog.String("error", err.Error()),
		)
	}
}
