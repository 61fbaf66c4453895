// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package server

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/strata-dev/strata/internal/graph"
)

func (s *Server) registerQueryTools() {
	s.registerReadGraph()
	s.registerOpenNodes()
	s.registerSearchNodes()
	s.registerGetEntityHistory()
	s.registerGetRelationHistory()
	s.registerGetGraphAtTime()
	s.registerGetDecayedGraph()
}

func (s *Server) registerReadGraph() {
	tool := mcp.NewTool(
		"read_graph",
		mcp.WithDescription("Read the entire current knowledge graph: all current entities and relations."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		g, err := s.store.ReadGraph(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return textResult(g)
	})
}

func (s *Server) registerOpenNodes() {
	tool := mcp.NewTool(
		"open_nodes",
		mcp.WithDescription(
			"Retrieve specific entities by name plus the current relations connecting them. "+
				"Unknown names are omitted.",
		),
		mcp.WithArray("names", mcp.Required(), mcp.Description("Entity names to open")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := decodeArg[[]string](req.GetArguments(), "names")
		if err != nil {
			return toolError(err), nil
		}

		g, err := s.store.OpenNodes(ctx, names)
		if err != nil {
			return toolError(err), nil
		}
		return textResult(g)
	})
}

func (s *Server) registerSearchNodes() {
	tool := mcp.NewTool(
		"search_nodes",
		mcp.WithDescription(
			"Lexically search current entities by name, type, and observations, returning the "+
				"matched entities and the relations connecting them.",
		),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := decodeArg[string](req.GetArguments(), "query")
		if err != nil {
			return toolError(err), nil
		}

		g, err := s.store.SearchNodes(ctx, query)
		if err != nil {
			return toolError(err), nil
		}
		return textResult(g)
	})
}

func (s *Server) registerGetEntityHistory() {
	tool := mcp.NewTool(
		"get_entity_history",
		mcp.WithDescription(
			"Return every version ever recorded for an entity, most recent first, including "+
				"superseded and soft-deleted versions.",
		),
		mcp.WithString("entityName", mcp.Required(), mcp.Description("Name of the entity")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := decodeArg[string](req.GetArguments(), "entityName")
		if err != nil {
			return toolError(err), nil
		}

		history, err := s.store.GetEntityHistory(ctx, name)
		if err != nil {
			return toolError(err), nil
		}
		return textResult(history)
	})
}

func (s *Server) registerGetRelationHistory() {
	tool := mcp.NewTool(
		"get_relation_history",
		mcp.WithDescription("Return every version ever recorded for a relation, most recent first."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source entity name")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target entity name")),
		mcp.WithString("relationType", mcp.Required(), mcp.Description("Relation type")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var key relationKeyInput
		if err := decodeArgs(req.GetArguments(), &key); err != nil {
			return toolError(err), nil
		}

		history, err := s.store.GetRelationHistory(ctx, key.From, key.To, graph.RelationType(key.RelationType))
		if err != nil {
			return toolError(err), nil
		}
		return textResult(history)
	})
}

func (s *Server) registerGetGraphAtTime() {
	tool := mcp.NewTool(
		"get_graph_at_time",
		mcp.WithDescription(
			"Reconstruct the graph as it existed at a past instant, given a millisecond Unix "+
				"timestamp. A timestamp before any data returns an empty graph.",
		),
		mcp.WithNumber("timestamp", mcp.Required(), mcp.Description("Millisecond Unix timestamp")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ms, err := decodeArg[int64](req.GetArguments(), "timestamp")
		if err != nil {
			return toolError(err), nil
		}

		g, err := s.store.GetGraphAtTime(ctx, time.UnixMilli(ms))
		if err != nil {
			return toolError(err), nil
		}
		return textResult(g)
	})
}

func (s *Server) registerGetDecayedGraph() {
	tool := mcp.NewTool(
		"get_decayed_graph",
		mcp.WithDescription(
			"Read the current graph with each relation's confidence decayed by its age. "+
				"Decay is a view; stored confidence values are unchanged.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		g, err := s.store.GetDecayedGraph(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return textResult(g)
	})
}
