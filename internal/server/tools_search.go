// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package server

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSearchTools() {
	s.registerSemanticSearch()
	s.registerFindSimilar()
}

func (s *Server) registerSemanticSearch() {
	tool := mcp.NewTool(
		"semantic_search",
		mcp.WithDescription(
			"Hybrid search over current entities, blending vector similarity of the query with "+
				"lexical matching. Falls back to lexical-only ranking when no embedding provider "+
				"is available.",
		),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, default 10")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		query, err := decodeArg[string](args, "query")
		if err != nil {
			return toolError(err), nil
		}
		limit, err := optionalArg[int](args, "limit", 10)
		if err != nil {
			return toolError(err), nil
		}

		// Degrade to lexical-only search when the embedding service is
		// unreachable; the fallback is required behavior, not an error.
		var queryVector []float32
		if s.embedder != nil {
			queryVector, err = s.embedder.Embed(ctx, query)
			if err != nil {
				s.logger.Warn("query embedding failed, falling back to lexical search",
					slog.String("error", err.Error()),
				)
				queryVector = nil
			}
		}

		results, err := s.store.HybridSearch(ctx, query, queryVector, limit)
		if err != nil {
			return toolError(err), nil
		}
		return textResult(results)
	})
}

func (s *Server) registerFindSimilar() {
	tool := mcp.NewTool(
		"find_similar",
		mcp.WithDescription(
			"Rank current entities by semantic similarity to an entity's stored embedding. "+
				"Requires that the reference entity has an embedding.",
		),
		mcp.WithString("entityName", mcp.Required(), mcp.Description("Reference entity name")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, default 10")),
		mcp.WithNumber("minSimilarity", mcp.Description("Similarity floor in [0,1], default 0")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		name, err := decodeArg[string](args, "entityName")
		if err != nil {
			return toolError(err), nil
		}
		limit, err := optionalArg[int](args, "limit", 10)
		if err != nil {
			return toolError(err), nil
		}
		minSim, err := optionalArg[float64](args, "minSimilarity", 0)
		if err != nil {
			return toolError(err), nil
		}

		vec, err := s.store.GetEntityEmbedding(ctx, name)
		if err != nil {
			return toolError(err), nil
		}
		if vec == nil {
			return mcp.NewToolResultError("entity " + name + " has no stored embedding"), nil
		}

		results, err := s.store.FindSimilarEntities(ctx, vec, limit, minSim)
		if err != nil {
			return toolError(err), nil
		}
		return textResult(results)
	})
}
