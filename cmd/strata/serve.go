// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/strata-dev/strata/internal/config"
	"github.com/strata-dev/strata/internal/embed"
	"github.com/strata-dev/strata/internal/graph"
	"github.com/strata-dev/strata/internal/graph/sqlite"
	"github.com/strata-dev/strata/internal/server"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge graph as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Verbose)

			if cfg.Storage.Database != ":memory:" {
				if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
					return strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "creating data directory")
				}
			}

			store, err := sqlite.New(cfg.DatabasePath(), cfg.Storage.VectorDimensions,
				sqlite.WithDecay(graph.DecayConfig{
					HalfLife:      cfg.Decay.HalfLife,
					MinConfidence: cfg.Decay.MinConfidence,
				}),
				sqlite.WithSemanticWeight(cfg.Search.SemanticWeight),
				sqlite.WithBusyTimeout(cfg.Storage.BusyTimeout),
				sqlite.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var embedder embed.Embedder
			if cfg.Embedding.Provider == "openai" {
				embedder = embed.NewOpenAI(
					cfg.Embedding.APIKey,
					cfg.Embedding.BaseURL,
					cfg.Embedding.Model,
					cfg.Storage.VectorDimensions,
				)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("serving graph over stdio",
				slog.String("database", cfg.DatabasePath()),
				slog.Int("dimensions", cfg.Storage.VectorDimensions),
				slog.String("embedding_provider", cfg.Embedding.Provider),
			)
			return server.New(store, embedder, version, logger).ServeStdio(ctx)
		},
	}
}

// newLogger writes structured logs to stderr; stdout belongs to the MCP
// stdio transport.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
