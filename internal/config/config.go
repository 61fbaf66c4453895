// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package config loads and validates Strata configuration through viper with
// the standard precedence: flag > env > file > defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// Config is the top-level Strata configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Verbose   bool            `mapstructure:"verbose"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Decay     DecayConfig     `mapstructure:"decay"`
	Search    SearchConfig    `mapstructure:"search"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// StorageConfig controls the embedded store.
type StorageConfig struct {
	// Database is the graph database file name inside DataDir, or ":memory:".
	Database string `mapstructure:"database"`

	// VectorDimensions is the fixed embedding width D. 1536 by default.
	VectorDimensions int `mapstructure:"vector_dimensions"`

	// BusyTimeout bounds how long a writer waits on the database lock.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// DecayConfig tunes time-based confidence decay. The exact half-life and
// floor are deployment decisions, never hardcoded in the engine.
type DecayConfig struct {
	HalfLife      time.Duration `mapstructure:"half_life"`
	MinConfidence float64       `mapstructure:"min_confidence"`
}

// SearchConfig tunes hybrid search blending.
type SearchConfig struct {
	// SemanticWeight is the vector-similarity share of the hybrid score,
	// in [0,1]. The remainder weights the lexical score.
	SemanticWeight float64 `mapstructure:"semantic_weight"`
}

// EmbeddingConfig selects the external embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai" or "none". With "none" the server runs
	// lexical-only search and stores no vectors.
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("verbose", false)

	v.SetDefault("storage.database", "graph.db")
	v.SetDefault("storage.vector_dimensions", 1536)
	v.SetDefault("storage.busy_timeout", 5*time.Second)

	v.SetDefault("decay.half_life", 30*24*time.Hour)
	v.SetDefault("decay.min_confidence", 0.1)

	v.SetDefault("search.semantic_weight", 0.7)

	v.SetDefault("embedding.provider", "none")
	v.SetDefault("embedding.model", "text-embedding-3-small")
}

// SetupEnv binds STRATA_* environment variables, nested keys joined with
// underscores (e.g. STRATA_STORAGE_VECTOR_DIMENSIONS).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load unmarshals and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeConfigLoadReadFailure, "unmarshalling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that the engine depends on.
func (c *Config) Validate() error {
	if c.Storage.VectorDimensions <= 0 {
		return strataerr.New(strataerr.CodeConfigValidateInvalidValue,
			"storage.vector_dimensions must be positive")
	}
	if c.Storage.BusyTimeout <= 0 {
		return strataerr.New(strataerr.CodeConfigValidateInvalidValue,
			"storage.busy_timeout must be positive")
	}
	if c.Decay.HalfLife <= 0 {
		return strataerr.New(strataerr.CodeConfigValidateInvalidValue,
			"decay.half_life must be positive")
	}
	if c.Decay.MinConfidence < 0 || c.Decay.MinConfidence > 1 {
		return strataerr.New(strataerr.CodeConfigValidateInvalidValue,
			"decay.min_confidence must be within [0,1]")
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return strataerr.New(strataerr.CodeConfigValidateInvalidValue,
			"search.semantic_weight must be within [0,1]")
	}
	switch c.Embedding.Provider {
	case "none", "openai":
	default:
		return strataerr.New(strataerr.CodeConfigValidateInvalidValue,
			"embedding.provider must be one of: none, openai")
	}
	return nil
}

// DatabasePath resolves the graph database location. ":memory:" passes
// through untouched.
func (c *Config) DatabasePath() string {
	if c.Storage.Database == ":memory:" || filepath.IsAbs(c.Storage.Database) {
		return c.Storage.Database
	}
	return filepath.Join(c.DataDir, c.Storage.Database)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "strata")
}
