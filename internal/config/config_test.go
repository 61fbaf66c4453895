// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-dev/strata/internal/config"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

func newViper() *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "graph.db", cfg.Storage.Database)
	assert.Equal(t, 1536, cfg.Storage.VectorDimensions)
	assert.Equal(t, 5*time.Second, cfg.Storage.BusyTimeout)
	assert.Equal(t, 30*24*time.Hour, cfg.Decay.HalfLife)
	assert.InDelta(t, 0.1, cfg.Decay.MinConfidence, 1e-9)
	assert.InDelta(t, 0.7, cfg.Search.SemanticWeight, 1e-9)
	assert.Equal(t, "none", cfg.Embedding.Provider)
	assert.False(t, cfg.Verbose)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STRATA_STORAGE_VECTOR_DIMENSIONS", "384")
	t.Setenv("STRATA_EMBEDDING_PROVIDER", "openai")

	v := newViper()
	config.SetupEnv(v)

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, 384, cfg.Storage.VectorDimensions)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
}

func TestLoad_ValidatesRanges(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"zero dimensions", "storage.vector_dimensions", 0},
		{"negative busy timeout", "storage.busy_timeout", -time.Second},
		{"zero half life", "decay.half_life", 0},
		{"min confidence above one", "decay.min_confidence", 1.5},
		{"semantic weight negative", "search.semantic_weight", -0.1},
		{"unknown provider", "embedding.provider", "bedrock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := config.Load(v)
			require.Error(t, err)
			assert.True(t, strataerr.HasCode(err, strataerr.CodeConfigValidateInvalidValue))
		})
	}
}

func TestDatabasePath(t *testing.T) {
	cfg, err := config.Load(newViper())
	require.NoError(t, err)

	cfg.DataDir = "/var/lib/strata"
	assert.Equal(t, filepath.Join("/var/lib/strata", "graph.db"), cfg.DatabasePath())

	cfg.Storage.Database = ":memory:"
	assert.Equal(t, ":memory:", cfg.DatabasePath())

	cfg.Storage.Database = "/tmp/elsewhere.db"
	assert.Equal(t, "/tmp/elsewhere.db", cfg.DatabasePath())
}
