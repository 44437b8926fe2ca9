package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ".docsift", cfg.Paths.DataDir)
	assert.InDelta(t, 0.6, cfg.Search.FusionWeight, 1e-9)
	assert.Equal(t, 50, cfg.Search.RecallK)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Nil(t, cfg.Search.RelevanceFloor)
	assert.True(t, cfg.UseHybrid())
	assert.False(t, cfg.Search.QueryExpansion)
	assert.Equal(t, "overlap", cfg.Reranker.Provider)

	require.NoError(t, cfg.Validate())
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `
version: 1
search:
  fusion_weight: 0.75
  max_results: 3
  relevance_floor: 0.2
  hybrid: false
embeddings:
  provider: static
  dimensions: 128
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsift.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, cfg.Search.FusionWeight, 1e-9)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	require.NotNil(t, cfg.Search.RelevanceFloor)
	assert.InDelta(t, 0.2, *cfg.Search.RelevanceFloor, 1e-9)
	assert.False(t, cfg.UseHybrid())
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 128, cfg.Embeddings.Dimensions)

	// Unset fields keep defaults
	assert.Equal(t, 50, cfg.Search.RecallK)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cfg.Search.FusionWeight, 1e-9)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOCSIFT_FUSION_WEIGHT", "0.25")
	t.Setenv("DOCSIFT_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("DOCSIFT_RELEVANCE_FLOOR", "0.35")
	t.Setenv("DOCSIFT_DATA_DIR", "/tmp/idx")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.InDelta(t, 0.25, cfg.Search.FusionWeight, 1e-9)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	require.NotNil(t, cfg.Search.RelevanceFloor)
	assert.InDelta(t, 0.35, *cfg.Search.RelevanceFloor, 1e-9)
	assert.Equal(t, "/tmp/idx", cfg.Paths.DataDir)
}

func TestEnvOverrideIgnoresOutOfRangeWeight(t *testing.T) {
	t.Setenv("DOCSIFT_FUSION_WEIGHT", "1.7")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cfg.Search.FusionWeight, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "fusion weight above one",
			mutate:  func(c *Config) { c.Search.FusionWeight = 1.5 },
			wantErr: "fusion_weight",
		},
		{
			name:    "fusion weight negative",
			mutate:  func(c *Config) { c.Search.FusionWeight = -0.1 },
			wantErr: "fusion_weight",
		},
		{
			name:    "zero recall_k",
			mutate:  func(c *Config) { c.Search.RecallK = 0 },
			wantErr: "recall_k",
		},
		{
			name:    "bad embeddings provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "faiss" },
			wantErr: "embeddings.provider",
		},
		{
			name:    "bad reranker provider",
			mutate:  func(c *Config) { c.Reranker.Provider = "bert" },
			wantErr: "reranker.provider",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".docsift.yaml")

	cfg := NewConfig()
	cfg.Search.FusionWeight = 0.42
	floor := 0.15
	cfg.Search.RelevanceFloor = &floor
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, loaded.Search.FusionWeight, 1e-9)
	require.NotNil(t, loaded.Search.RelevanceFloor)
	assert.InDelta(t, 0.15, *loaded.Search.RelevanceFloor, 1e-9)
}
