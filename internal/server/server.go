// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package server exposes the graph engine as MCP tools over stdio. It owns
// input decoding and embedding orchestration; all graph semantics live in
// internal/graph.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/strata-dev/strata/internal/embed"
	"github.com/strata-dev/strata/internal/graph"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Server wires the temporal graph store and the embedding provider into an
// MCP tool surface.
type Server struct {
	store    graph.Store
	embedder embed.Embedder // nil when no provider is configured
	logger   *slog.Logger
	mcp      *server.MCPServer
}

// New builds the MCP server and registers all graph tools. embedder may be
// nil; search then degrades to lexical-only ranking.
func New(store graph.Store, embedder embed.Embedder, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:    store,
		embedder: embedder,
		logger:   logger,
		mcp: server.NewMCPServer(
			"strata",
			version,
			server.WithToolCapabilities(false),
		),
	}

	s.registerEntityTools()
	s.registerRelationTools()
	s.registerQueryTools()
	s.registerSearchTools()

	return s
}

// ServeStdio blocks serving MCP requests on stdin/stdout until the stream
// closes or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	if err := server.ServeStdio(s.mcp, server.WithStdioContextFunc(
		func(context.Context) context.Context { return ctx },
	)); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeServerStartFailure, "serving MCP over stdio")
	}
	return nil
}

// MCP returns the underlying MCP server, for tests.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// textResult marshals v as JSON into a tool result.
func textResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError maps a graph error onto an MCP error result, keeping the
// machine-readable code visible to the client.
func toolError(err error) *mcp.CallToolResult {
	if code := strataerr.CodeOf(err); code != "" {
		return mcp.NewToolResultError(string(code) + ": " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

// decodeArg extracts args[key] into a typed value via a JSON round trip,
// which tolerates the loosely typed maps the MCP transport delivers.
func decodeArg[T any](args map[string]any, key string) (T, error) {
	var out T
	raw, ok := args[key]
	if !ok {
		return out, strataerr.Errorf(strataerr.CodeServerToolInvalid, "missing argument %q", key)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out, strataerr.Wrapf(err, strataerr.CodeServerToolInvalid, "encoding argument %q", key)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, strataerr.Wrapf(err, strataerr.CodeServerToolInvalid, "decoding argument %q", key)
	}
	return out, nil
}

// decodeArgs extracts the whole argument map into a typed struct.
func decodeArgs[T any](args map[string]any, out *T) error {
	b, err := json.Marshal(args)
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeServerToolInvalid, "encoding arguments")
	}
	if err := json.Unmarshal(b, out); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeServerToolInvalid, "decoding arguments")
	}
	return nil
}

// optionalArg is decodeArg for arguments that may be absent.
func optionalArg[T any](args map[string]any, key string, fallback T) (T, error) {
	if _, ok := args[key]; !ok {
		return fallback, nil
	}
	return decodeArg[T](args, key)
}
