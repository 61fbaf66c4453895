// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/strata-dev/strata/internal/config"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// NewRootCmd creates the root strata command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "strata",
		Short:         "Strata — temporal knowledge-graph memory for AI agents",
		Long:          "Strata is a persistent memory layer storing a versioned knowledge graph with point-in-time queries, confidence decay, and semantic search.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return strataerr.Wrapf(err, strataerr.CodeConfigLoadReadFailure, "reading config file")
		}
	} else {
		v.SetConfigName("strata")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/strata")
		v.AddConfigPath("/etc/strata")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return strataerr.Wrapf(err, strataerr.CodeConfigLoadReadFailure, "reading config")
			}
		}
	}

	if err := v.BindPFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "binding data-dir flag")
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeCLISetupFailure, "binding verbose flag")
	}

	return nil
}
